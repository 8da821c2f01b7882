package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/vmihailenco/msgpack/v5"
)

// CodecStage 标识编解码流水线中出错的阶段。
type CodecStage string

const (
	StageSerialize   CodecStage = "serialize"
	StageCompress    CodecStage = "compress"
	StageDecompress  CodecStage = "decompress"
	StageDeserialize CodecStage = "deserialize"
)

var (
	// ErrDecompress 匹配所有解压阶段的 CodecError（损坏或截断的压缩块）。
	ErrDecompress = errors.New("cache entry decompress failed")
	// ErrDeserialize 匹配所有反序列化阶段的 CodecError。
	ErrDeserialize = errors.New("cache entry deserialize failed")
	// ErrInvalidLevel 表示压缩级别超出 zlib 支持的范围。
	ErrInvalidLevel = errors.New("compress level must be between -1 and 9")
	// ErrRawValue 表示未开启序列化时传入了非字节内容。
	ErrRawValue = errors.New("raw content must be []byte or string")
)

// CodecError 携带出错阶段，调用方可据此决定视为未命中还是硬失败。
type CodecError struct {
	Stage CodecStage
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("cache codec %s: %v", e.Stage, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrDecompress/ErrDeserialize) 可以按阶段匹配。
func (e *CodecError) Is(target error) bool {
	switch target {
	case ErrDecompress:
		return e.Stage == StageDecompress
	case ErrDeserialize:
		return e.Stage == StageDeserialize
	}
	return false
}

// Codec 是纯函数式的编解码流水线：写入时先序列化后压缩，读取时反向执行。
type Codec struct {
	Serialize bool
	Compress  bool
	Level     int
}

// NewCodec 校验压缩级别后构造 Codec。
func NewCodec(serialize, compress bool, level int) (Codec, error) {
	if compress && (level < zlib.DefaultCompression || level > zlib.BestCompression) {
		return Codec{}, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return Codec{Serialize: serialize, Compress: compress, Level: level}, nil
}

// Encode 将 value 转为落盘字节。
func (c Codec) Encode(value any) ([]byte, error) {
	var data []byte
	if c.Serialize {
		encoded, err := msgpack.Marshal(value)
		if err != nil {
			return nil, &CodecError{Stage: StageSerialize, Err: err}
		}
		data = encoded
	} else {
		switch v := value.(type) {
		case []byte:
			data = v
		case string:
			data = []byte(v)
		default:
			return nil, &CodecError{Stage: StageSerialize, Err: fmt.Errorf("%w, got %T", ErrRawValue, value)}
		}
	}

	if !c.Compress {
		return data, nil
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, &CodecError{Stage: StageCompress, Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return nil, &CodecError{Stage: StageCompress, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &CodecError{Stage: StageCompress, Err: err}
	}
	return buf.Bytes(), nil
}

// Decode 将落盘字节还原进 dst。未开启序列化时 dst 必须是 *[]byte 或 *string。
func (c Codec) Decode(data []byte, dst any) error {
	if c.Compress {
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return &CodecError{Stage: StageDecompress, Err: err}
		}
		plain, err := io.ReadAll(r)
		closeErr := r.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return &CodecError{Stage: StageDecompress, Err: err}
		}
		data = plain
	}

	if c.Serialize {
		if err := msgpack.Unmarshal(data, dst); err != nil {
			return &CodecError{Stage: StageDeserialize, Err: err}
		}
		return nil
	}

	switch out := dst.(type) {
	case *[]byte:
		*out = append((*out)[:0], data...)
	case *string:
		*out = string(data)
	default:
		return &CodecError{Stage: StageDeserialize, Err: fmt.Errorf("%w, got destination %T", ErrRawValue, dst)}
	}
	return nil
}
