package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
)

// EventStream relays bus signals to the operator dashboard as server-sent events.
type EventStream struct {
	bus    *signals.Bus
	logger *zap.Logger
}

func NewEventStream(bus *signals.Bus, logger *zap.Logger) *EventStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStream{bus: bus, logger: logger}
}

// Stream accepts an optional comma separated "types" query narrowing the relayed signals.
func (stream *EventStream) Stream(ginContext *gin.Context) {
	if stream.bus == nil {
		ginContext.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	flusher, flushable := ginContext.Writer.(http.Flusher)
	if !flushable {
		ginContext.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	subscription := stream.bus.Subscribe(requestedTypes(ginContext.Query("types"))...)
	defer subscription.Close()

	ginContext.Header("Content-Type", "text/event-stream")
	ginContext.Header("Cache-Control", "no-cache")
	ginContext.Header("Connection", "keep-alive")
	ginContext.Writer.WriteHeaderNow()
	flusher.Flush()

	requestContext := ginContext.Request.Context()
	for {
		select {
		case <-requestContext.Done():
			return
		case signal, ok := <-subscription.Events():
			if !ok {
				return
			}
			serializedPayload, marshalErr := json.Marshal(signal)
			if marshalErr != nil {
				stream.logger.Debug("marshal_signal_failed", zap.Error(marshalErr))
				continue
			}
			var buffer bytes.Buffer
			buffer.WriteString("event: ")
			buffer.WriteString(string(signal.Type))
			buffer.WriteString("\n")
			buffer.WriteString("data: ")
			buffer.Write(serializedPayload)
			buffer.WriteString("\n\n")
			if _, writeErr := ginContext.Writer.Write(buffer.Bytes()); writeErr != nil {
				return
			}
			flusher.Flush()
			stream.logger.Debug("stream_signal", zap.String("signal_type", string(signal.Type)), zap.String("subject", signal.Subject))
		}
	}
}

func requestedTypes(raw string) []signals.Type {
	var types []signals.Type
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			types = append(types, signals.Type(trimmed))
		}
	}
	return types
}
