package cache

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// 模板内置 token 名称，配置里的同名 token 会被内置值覆盖。
const (
	TokenID  = "id"
	TokenCWD = "cwd"
	TokenTmp = "tmp"
)

// HashID 返回 id 的 MD5 十六进制摘要，用于把任意 key 归一为定长、文件系统安全的名字。
func HashID(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

// FormatTemplate 将模板中的 {name} 替换为 tokens[name]；未知 token 原样保留。
// 未闭合的 { 按普通字符输出，"{a{id}" 中的 {id} 仍会被替换。
func FormatTemplate(template string, tokens map[string]string) string {
	if template == "" || len(tokens) == 0 || !strings.Contains(template, "{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += open
		// 取离 } 最近的 {，前面未闭合的部分原样输出
		if inner := strings.LastIndexByte(rest[open:end], '{'); inner > 0 {
			open += inner
		}

		name := rest[open+1 : end]
		b.WriteString(rest[:open])
		if value, ok := tokens[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[open : end+1])
		}
		rest = rest[end+1:]
	}
	return b.String()
}

// templateUsesToken 判断模板是否引用了指定 token。
func templateUsesToken(template, name string) bool {
	return strings.Contains(template, "{"+name+"}")
}

// resolver 持有不随 id 变化的 token，所有操作共用同一套解析规则。
type resolver struct {
	directoryTemplate string
	fileTemplate      string
	tokens            map[string]string
}

func newResolver(directoryTemplate, fileTemplate string, tokens map[string]string) resolver {
	merged := make(map[string]string, len(tokens)+1)
	for k, v := range tokens {
		merged[k] = v
	}
	return resolver{
		directoryTemplate: directoryTemplate,
		fileTemplate:      fileTemplate,
		tokens:            merged,
	}
}

// directory 返回缓存目录；目录模板不允许引用 {id}，因此与 id 无关。
// 相对路径以构造时的 {cwd} 为基准，文件系统以 / 为根，不能直接使用相对路径。
func (r resolver) directory() string {
	dir := FormatTemplate(r.directoryTemplate, r.tokens)
	if !filepath.IsAbs(dir) {
		if cwd, ok := r.tokens[TokenCWD]; ok {
			dir = filepath.Join(cwd, dir)
		} else if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	return filepath.Clean(dir)
}

// entryPath 返回 id 对应的缓存文件路径。
func (r resolver) entryPath(id string) string {
	tokens := make(map[string]string, len(r.tokens)+1)
	for k, v := range r.tokens {
		tokens[k] = v
	}
	tokens[TokenID] = HashID(id)
	return filepath.Join(r.directory(), FormatTemplate(r.fileTemplate, tokens))
}
