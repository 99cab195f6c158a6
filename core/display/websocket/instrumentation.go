package websocket

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-voice/core/display/websocket"

var (
	logger = otelslog.NewLogger(scopeName)
)
