// Package relabel 为 Prometheus 文本格式的指标追加身份标签
package relabel

import (
	"strings"

	"github.com/dushixiang/sidecar/internal/protocol"
)

var valueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// Relabeler 预先构造好身份标签的重写器
type Relabeler struct {
	labels string
}

// New 创建 Relabeler
func New(id protocol.Identity) *Relabeler {
	return &Relabeler{
		labels: protocol.FieldServiceName + `="` + valueEscaper.Replace(id.ServiceName) + `",` +
			protocol.FieldEnvironment + `="` + valueEscaper.Replace(id.Environment) + `"`,
	}
}

// Line 重写单行指标，注释、空行和无法识别的行返回 false
func Line(line string, id protocol.Identity) (string, bool) {
	return New(id).Line(line)
}

// Text 重写整段指标文本，保留的行以 \n 连接
func Text(raw string, id protocol.Identity) string {
	return New(id).Text(raw)
}

func (r *Relabeler) Text(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw) + len(raw)/2)

	first := true
	for _, line := range strings.Split(raw, "\n") {
		out, ok := r.Line(line)
		if !ok {
			continue
		}
		if !first {
			sb.WriteByte('\n')
		}
		sb.WriteString(out)
		first = false
	}
	return sb.String()
}

func (r *Relabeler) Line(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", false
	}

	nameEnd := strings.IndexAny(line, "{ \t")
	if nameEnd <= 0 {
		// 只有名称没有值
		return "", false
	}
	name := line[:nameEnd]

	var body, value string
	if line[nameEnd] == '{' {
		closing := closingBrace(line, nameEnd+1)
		if closing < 0 {
			return "", false
		}
		body = line[nameEnd+1 : closing]
		value = strings.TrimSpace(line[closing+1:])
	} else {
		value = strings.TrimSpace(line[nameEnd:])
	}
	if value == "" {
		return "", false
	}

	body = r.merge(body)

	var sb strings.Builder
	sb.Grow(len(name) + len(body) + len(value) + 3)
	sb.WriteString(name)
	sb.WriteByte('{')
	sb.WriteString(body)
	sb.WriteString("} ")
	sb.WriteString(value)
	return sb.String(), true
}

// merge 在原有标签后追加身份标签，已存在的同名标签会被移除
func (r *Relabeler) merge(body string) string {
	body = strings.TrimSpace(body)

	pairs := splitLabels(body)
	kept := make([]string, 0, len(pairs))
	conflict := false
	for _, pair := range pairs {
		switch labelName(pair) {
		case protocol.FieldServiceName, protocol.FieldEnvironment:
			conflict = true
		default:
			kept = append(kept, pair)
		}
	}

	if conflict {
		body = strings.Join(kept, ",")
	} else {
		body = strings.TrimRight(body, ", \t")
	}
	if body == "" {
		return r.labels
	}
	return body + "," + r.labels
}

// closingBrace 返回 from 之后第一个不在引号内的 '}' 位置
func closingBrace(s string, from int) int {
	inQuote, escaped := false, false
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == '}' && !inQuote:
			return i
		}
	}
	return -1
}

// splitLabels 按引号外的逗号切分标签
func splitLabels(body string) []string {
	var (
		pairs   []string
		start   int
		inQuote bool
		escaped bool
	)
	flush := func(end int) {
		if pair := strings.TrimSpace(body[start:end]); pair != "" {
			pairs = append(pairs, pair)
		}
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			flush(i)
			start = i + 1
		}
	}
	flush(len(body))
	return pairs
}

func labelName(pair string) string {
	name, _, _ := strings.Cut(pair, "=")
	return strings.TrimSpace(name)
}
