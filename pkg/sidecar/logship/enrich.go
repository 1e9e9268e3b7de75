package logship

import (
	"errors"
	"fmt"

	"github.com/dushixiang/sidecar/internal/protocol"
	"github.com/valyala/fastjson"
)

// ErrMalformedRecord 日志行不是 JSON 对象
var ErrMalformedRecord = errors.New("malformed log record")

var (
	parserPool fastjson.ParserPool
	arenaPool  fastjson.ArenaPool
)

// Enrich 向 JSON 对象写入 service_name 与 environment，已有同名字段会被覆盖，
// 其余字段按原文保留
func Enrich(line []byte, id protocol.Identity) ([]byte, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	a := arenaPool.Get()
	defer arenaPool.Put(a)
	defer a.Reset()

	obj.Set(protocol.FieldServiceName, a.NewString(id.ServiceName))
	obj.Set(protocol.FieldEnvironment, a.NewString(id.Environment))

	return v.MarshalTo(make([]byte, 0, len(line)+64)), nil
}
