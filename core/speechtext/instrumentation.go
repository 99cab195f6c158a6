package speechtext

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-voice/core/speechtext"

var (
	logger = otelslog.NewLogger(scopeName)
)
