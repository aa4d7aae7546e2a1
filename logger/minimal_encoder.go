package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Gruvbox-ish palette: warm, muted, easy on eyes.
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorFg     = "\x1b[38;5;223m" // soft cream
	colorAqua   = "\x1b[38;5;108m" // muted cyan-green, timestamps
	colorOrange = "\x1b[38;5;208m" // warm orange, components
	colorYellow = "\x1b[38;5;214m" // soft yellow, components/warnings
	colorGreen  = "\x1b[38;5;142m" // muted green, numbers
	colorBlue   = "\x1b[38;5;109m" // soft blue, IDs
	colorRed    = "\x1b[38;5;167m" // warm red, errors
	colorRedBg  = "\x1b[48;5;88m"
	colorYelBg  = "\x1b[48;5;58m"
)

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  s.activation  Analysis complete  q_5f21 (8 tags, 0.64)"
type minimalEncoder struct {
	zapcore.Encoder // base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	final.AppendString(colorAqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level only shows for WARN and above
	if ent.Level != zapcore.InfoLevel && ent.Level != zapcore.DebugLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(componentColor(ent.LoggerName))
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(colorFg)
	final.AppendString(ent.Message)
	final.AppendString(colorReset)

	if len(fields) > 0 {
		if formatted := formatFields(fields); formatted != "" {
			final.AppendString("  ")
			final.AppendString(formatted)
		}
	}

	final.AppendString("\n")
	return final, nil
}

func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorYelBg + colorYellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorRedBg + colorRed + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorRedBg + colorRed + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// componentColor returns a consistent color per component name
func componentColor(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	if hash%2 == 0 {
		return colorOrange
	}
	return colorYellow
}

// abbreviateName shortens component names: queue -> queue, semantic.calibrate -> s.calibrate
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.Float64Type, zapcore.Float32Type:
		if field.Interface != nil {
			return fmt.Sprintf("%v", field.Interface)
		}
		return ""
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// formatFields pulls the values of well-known structured fields.
// Input: {"question_id": "q_5f21", "tags": 8, "score": 0.64}
// Output: "q_5f21 (8 tags, 0.64)" with colored IDs and numbers.
func formatFields(fields []zapcore.Field) string {
	var values []string
	var tagCount, score string

	for _, field := range fields {
		switch field.Key {
		case "question_id", "job_id", "analysis_id", "tag_id", "model_id":
			if val := fieldValue(field); val != "" {
				values = append(values, colorBlue+val+colorReset)
			}
		case "tags":
			tagCount = fieldValue(field)
		case "score", "difficulty":
			score = fieldValue(field)
		case "band":
			if val := fieldValue(field); val != "" {
				values = append(values, colorGreen+val+colorReset)
			}
		case "count", "batch", "analyzed", "calibrated":
			if val := fieldValue(field); val != "" {
				values = append(values, colorGreen+val+colorReset)
			}
		case "duration_ms":
			if val := fieldValue(field); val != "" {
				values = append(values, colorGreen+val+colorReset+"ms")
			}
		case "error":
			if val := fieldValue(field); val != "" {
				values = append(values, colorRed+val+colorReset)
			}
		}
	}

	if tagCount != "" && score != "" {
		values = append(values, colorFg+"("+colorGreen+tagCount+colorReset+colorFg+" tags, "+colorGreen+score+colorReset+colorFg+")"+colorReset)
	} else if score != "" {
		values = append(values, colorGreen+score+colorReset)
	}

	return strings.Join(values, " ")
}
