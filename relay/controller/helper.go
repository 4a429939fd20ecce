package controller

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/ctxkey"
	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/middleware"
	"github.com/skybridge-ai/bedrock-gateway/monitor"
	"github.com/skybridge-ai/bedrock-gateway/relay/accounting"
	"github.com/skybridge-ai/bedrock-gateway/relay/adaptor/bedrock"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/resolver"
)

// Dialect labels recorded under ctxkey.Dialect for metrics and logs.
const (
	dialectAnthropic = "anthropic"
	dialectOpenAI    = "openai"
)

// eventWriter serializes canonical stream events onto one dialect's wire.
// anthropic.StreamWriter and openai.ChunkWriter both satisfy it.
type eventWriter interface {
	Write(ev relaymodel.StreamEvent) error
}

// eventSource is the upstream stream surface the pump consumes.
// *bedrockruntime.ConverseStreamEventStream satisfies it; tests feed fakes.
type eventSource interface {
	Events() <-chan types.ConverseStreamOutput
	Err() error
}

// resolveModel runs the resolver ladder: the request now points at the
// upstream id while ClientModel keeps the caller's name for response echoing.
func resolveModel(c *gin.Context, req *relaymodel.Request) {
	req.Model = resolver.Resolve(gmw.Ctx(c), req.ClientModel)
	c.Set(ctxkey.ResolvedModel, req.Model)
}

// newEntry seeds the accounting entry shared by every relay outcome; callers
// fill usage and the success flag.
func newEntry(c *gin.Context, req *relaymodel.Request, start time.Time) accounting.Entry {
	return accounting.Entry{
		Key:           middleware.GetKeyContext(c),
		RequestID:     c.GetString(helper.RequestIdKey),
		ClientModel:   req.ClientModel,
		ResolvedModel: req.Model,
		Duration:      time.Since(start),
	}
}

// relayUnary forwards one provider-neutral request as a unary Converse call
// and hands the translated reply to respond for dialect serialization. Both
// outcomes are accounted; only requests that never reached the upstream are
// not.
func relayUnary(c *gin.Context, req *relaymodel.Request, respond func(*relaymodel.Response)) {
	lg := gmw.GetLogger(c)
	start := time.Now()

	in, names, err := bedrock.ConvertRequest(req)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}

	upstreamStart := time.Now()
	out, uerr := bedrock.Converse(gmw.Ctx(c), in)
	monitor.RecordUpstream(req.Model, time.Since(upstreamStart))
	if uerr != nil {
		entry := newEntry(c, req, start)
		entry.ErrorMessage = uerr.Message
		accounting.Record(gmw.Ctx(c), entry)
		middleware.AbortWithError(c, uerr)
		return
	}

	resp, err := bedrock.ConvertResponse(out, names)
	if err != nil {
		lg.Error("translate upstream response", zap.Error(err))
		middleware.AbortWithError(c, relaymodel.NewInternalError(err))
		return
	}
	resp.Model = req.ClientModel

	respond(resp)

	entry := newEntry(c, req, start)
	entry.Usage = resp.Usage
	entry.Success = true
	accounting.Record(gmw.Ctx(c), entry)
}

// relayStream forwards one provider-neutral request as a Converse stream and
// pumps the transcoded events to w until the terminal frame, a timeout, or a
// client disconnect. Once the stream is open, upstream failures travel
// in-band as an error event followed by message_stop, never as a late status
// change.
func relayStream(c *gin.Context, req *relaymodel.Request, w eventWriter) {
	lg := gmw.GetLogger(c)
	start := time.Now()

	in, names, err := bedrock.ConvertRequest(req)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.NewInvalidRequestError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(config.StreamingTimeoutSeconds)*time.Second)
	defer cancel()

	out, uerr := bedrock.ConverseStream(ctx, bedrock.ToStreamInput(in))
	if uerr != nil {
		monitor.RecordUpstream(req.Model, time.Since(start))
		entry := newEntry(c, req, start)
		entry.ErrorMessage = uerr.Message
		accounting.Record(gmw.Ctx(c), entry)
		middleware.AbortWithError(c, uerr)
		return
	}
	stream := out.GetStream()
	defer stream.Close()

	common.SetEventStreamHeaders(c)

	state := bedrock.NewStreamState(names)
	cancelled, streamErr := pumpStream(ctx, c, stream, state, w)
	monitor.RecordUpstream(req.Model, time.Since(start))

	if cancelled && !state.SawUsage() {
		lg.Warn("stream cancelled before upstream reported usage, nothing to account",
			zap.String("model", req.ClientModel))
		return
	}

	entry := newEntry(c, req, start)
	entry.Usage = state.Usage()
	entry.Success = streamErr == nil && !cancelled
	if streamErr != nil {
		entry.ErrorMessage = streamErr.Message
	}
	accounting.Record(gmw.Ctx(c), entry)
}

// pumpStream drains upstream frames into w, transcoding through state. It
// returns cancelled=true when the client went away before the stream
// finished, plus the in-band error delivered to the client, if any.
//
// A ping frame goes out whenever config.StreamPingInterval passes without
// traffic; the idle timer aborts the stream when the upstream goes silent
// for config.StreamIdleTimeoutSeconds.
func pumpStream(ctx context.Context, c *gin.Context, src eventSource, state *bedrock.StreamState, w eventWriter) (cancelled bool, streamErr *relaymodel.Error) {
	lg := gmw.GetLogger(c)

	ping := time.NewTicker(config.StreamPingInterval)
	defer ping.Stop()

	idleTimeout := time.Duration(config.StreamIdleTimeoutSeconds) * time.Second
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				if err := src.Err(); err != nil && !state.Finished() {
					lg.Warn("upstream stream failed mid-flight", zap.Error(err))
					classified := bedrock.ClassifyError(err)
					streamErr = &classified.Error
					writeEvents(w, state.Fail(streamErr))
					return false, streamErr
				}
				writeEvents(w, state.Finish())
				return false, nil
			}
			idle.Reset(idleTimeout)
			if err := writeEvents(w, state.Handle(ev)); err != nil {
				lg.Warn("write stream frame", zap.Error(err))
				return true, nil
			}
			if state.Finished() && state.SawUsage() {
				return false, nil
			}

		case <-ping.C:
			if err := w.Write(relaymodel.StreamEvent{Type: relaymodel.EventPing}); err != nil {
				lg.Warn("write ping frame", zap.Error(err))
				return true, nil
			}

		case <-idle.C:
			lg.Warn("upstream went silent, aborting stream",
				zap.Duration("idle_timeout", idleTimeout))
			streamErr = &relaymodel.Error{
				Type:    relaymodel.ErrTypeAPI,
				Message: "upstream timed out: no events received",
			}
			writeEvents(w, state.Fail(streamErr))
			return false, streamErr

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				streamErr = &relaymodel.Error{
					Type:    relaymodel.ErrTypeAPI,
					Message: "streaming timeout exceeded",
				}
				writeEvents(w, state.Fail(streamErr))
				return false, streamErr
			}
			lg.Info("client disconnected mid-stream")
			return true, nil
		}
	}
}

func writeEvents(w eventWriter, events []relaymodel.StreamEvent) error {
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}
