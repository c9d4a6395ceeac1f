package analysis

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// requestSchema 只约束线上类型：必填字段存在、价格为数字、time 为字符串。
// 价格之间的大小关系与时间顺序不做校验。
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["symbol", "candles"],
  "properties": {
    "version": {"type": "integer"},
    "symbol": {"type": "string"},
    "period": {"type": "integer"},
    "candles": {"$ref": "#/definitions/candles"},
    "mid_period": {"type": "integer"},
    "mid_candles": {"$ref": "#/definitions/optionalCandles"},
    "low_period": {"type": "integer"},
    "low_candles": {"$ref": "#/definitions/optionalCandles"},
    "correlation": {
      "type": ["object", "null"],
      "properties": {
        "symbol": {"type": "string"},
        "period": {"type": "integer"},
        "candles": {"$ref": "#/definitions/optionalCandles"},
        "low_period": {"type": "integer"},
        "low_candles": {"$ref": "#/definitions/optionalCandles"}
      }
    }
  },
  "definitions": {
    "candle": {
      "type": "object",
      "required": ["time", "open", "high", "low", "close"],
      "properties": {
        "time": {"type": "string"},
        "open": {"type": "number"},
        "high": {"type": "number"},
        "low": {"type": "number"},
        "close": {"type": "number"}
      }
    },
    "candles": {"type": "array", "items": {"$ref": "#/definitions/candle"}},
    "optionalCandles": {"type": ["array", "null"], "items": {"$ref": "#/definitions/candle"}}
  }
}`

const schemaURL = "analysis_request.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(schemaURL, strings.NewReader(requestSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile(schemaURL)
	})
	return schemaCompiled, schemaErr
}

// schemaFieldErrors 把 jsonschema 的错误树展开成叶子节点列表。
func schemaFieldErrors(err *jsonschema.ValidationError) []FieldError {
	if err == nil {
		return nil
	}
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(err.InstanceLocation, "/")
		if field == "" {
			field = "body"
		}
		return []FieldError{{Field: strings.ReplaceAll(field, "/", "."), Message: err.Message}}
	}
	var out []FieldError
	for _, cause := range err.Causes {
		out = append(out, schemaFieldErrors(cause)...)
	}
	return out
}
