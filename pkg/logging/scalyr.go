package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var bufferPool = buffer.NewPool()

// ScalyrEncoder outputs flat, Scalyr-compatible JSON lines.
// Fields attached with logger.With are kept and merged into every entry.
type ScalyrEncoder struct {
	zapcore.Encoder
	config zapcore.EncoderConfig
	fields []zapcore.Field
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		Encoder: zapcore.NewJSONEncoder(config),
		config:  config,
	}
}

// AddString records With-fields so EncodeEntry can flatten them.
func (e *ScalyrEncoder) AddString(key, value string) {
	e.fields = append(e.fields, zapcore.Field{Key: key, Type: zapcore.StringType, String: value})
}

// EncodeEntry encodes a log entry in Scalyr-compatible format
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	logObj := map[string]interface{}{
		"timestamp": entry.Time.Format(time.RFC3339Nano),
		"level":     entry.Level.String(),
		"message":   entry.Message,
	}
	if entry.LoggerName != "" {
		logObj["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		logObj["file"] = entry.Caller.File
		logObj["line"] = entry.Caller.Line
	}
	if entry.Stack != "" {
		logObj["stack"] = entry.Stack
	}

	all := make([]zapcore.Field, 0, len(e.fields)+len(fields))
	all = append(all, e.fields...)
	all = append(all, fields...)
	for _, field := range all {
		logObj[field.Key] = fieldValue(field)
	}

	data, err := json.Marshal(logObj)
	if err != nil {
		return nil, err
	}

	buf := bufferPool.Get()
	buf.AppendBytes(data)
	buf.AppendByte('\n')
	return buf, nil
}

func fieldValue(field zapcore.Field) interface{} {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return field.Integer
	case zapcore.BoolType:
		return field.Integer == 1
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
		return nil
	default:
		enc := zapcore.NewMapObjectEncoder()
		field.AddTo(enc)
		return enc.Fields[field.Key]
	}
}

// Clone creates a copy of the encoder
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	fields := make([]zapcore.Field, len(e.fields))
	copy(fields, e.fields)
	return &ScalyrEncoder{
		Encoder: e.Encoder.Clone(),
		config:  e.config,
		fields:  fields,
	}
}

// AddInt64 records integer With-fields.
func (e *ScalyrEncoder) AddInt64(key string, value int64) {
	e.fields = append(e.fields, zapcore.Field{Key: key, Type: zapcore.Int64Type, Integer: value})
}
