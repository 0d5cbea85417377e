package bridgecall

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/birddigital/voicebridge/internal/aiconnector"
	"github.com/birddigital/voicebridge/internal/telephony"
	"golang.org/x/sync/errgroup"
)

const (
	nudgeInterval1 = 2 * time.Second
	nudgeInterval2 = 4 * time.Second
	nudgeInterval3 = 6 * time.Second
	processingNudgeDelay = 250 * time.Millisecond
	bufferPollInterval   = 50 * time.Millisecond
)

type wireMessage struct {
	data []byte
	err  error
}

// Run drives a single Call end to end: it reads telephony events until
// a valid `start` arrives, connects the AI session, then owns every
// timer and both reader goroutines for the rest of the call's life.
// It returns when either side closes or a fatal error occurs; the
// caller is responsible for calling Cleanup afterward (a defer is
// enough, and Cleanup is safe to repeat), which closes both sockets so
// the reader goroutines can exit, matching invariant I6.
func Run(ctx context.Context, call *Call, telConn telephony.Conn, dialer aiconnector.Dialer, fetcher aiconnector.SignedURLFetcher) error {
	call.AttachTelephony(telConn)

	startEvent, err := waitForStart(telConn, call.cfg.AuthToken)
	if err != nil {
		telephony.CloseWithCode(telConn, telephony.ClosePolicyViolation, "auth")
		return fmt.Errorf("bridgecall: %w", err)
	}

	if err := call.ApplyStart(startEvent); err != nil {
		telephony.CloseWithCode(telConn, telephony.ClosePolicyViolation, "auth")
		return err
	}

	session, err := aiconnector.Connect(ctx, dialer, fetcher, aiconnector.Config{
		APIKey:        call.cfg.AIAPIKey,
		AgentID:       call.AgentID,
		SignedURLBase: "https://" + call.cfg.AIBaseHost + "/v1/convai/conversation/get_signed_url",
		DirectWSSBase: "wss://" + call.cfg.AIBaseHost + "/v1/convai/conversation",
		DialTimeout:   10 * time.Second,
	})
	if err != nil {
		telephony.CloseWithCode(telConn, telephony.CloseInternalError, "ai connect failed")
		return fmt.Errorf("bridgecall: %w", err)
	}
	call.AttachAI(session)

	profileDoc := call.ResolveProfile(ctx, startEvent)
	if err := call.SendInitiation(profileDoc); err != nil {
		log.Printf("[Call %s] sending initiation record: %v", call.SessionID, err)
	}

	return runLoop(ctx, call, telConn, session)
}

func waitForStart(telConn telephony.Conn, authToken string) (telephony.Event, error) {
	for {
		_, raw, err := telConn.ReadMessage()
		if err != nil {
			return telephony.Event{}, fmt.Errorf("waiting for start event: %w", err)
		}
		ev, err := telephony.ParseInbound(raw)
		if err != nil {
			log.Printf("[telephony] skipping malformed record while awaiting start: %v", err)
			continue
		}
		switch ev.Kind {
		case telephony.KindConnected:
			continue
		case telephony.KindStart:
			if !telephony.AuthorizeStart(ev, authToken) {
				return telephony.Event{}, fmt.Errorf("start event failed auth token check")
			}
			return ev, nil
		default:
			log.Printf("[telephony] ignoring %v event before start", ev.Kind)
		}
	}
}

func runLoop(ctx context.Context, call *Call, telConn telephony.Conn, session *aiconnector.Session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	telMsgs := make(chan wireMessage, 16)
	aiMsgs := make(chan wireMessage, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pumpReader(gctx, func() ([]byte, error) {
			_, data, err := telConn.ReadMessage()
			return data, err
		}, telMsgs)
	})
	g.Go(func() error { return pumpReader(gctx, session.ReadMessage, aiMsgs) })

	silenceTimer := newStoppedTimer()
	hardCapTimer := newStoppedTimer()
	metadataFallbackTimer := time.NewTimer(call.cfg.MetadataFallbackTimeout())
	nudgeTimer1 := time.NewTimer(nudgeInterval1)
	nudgeTimer2 := time.NewTimer(nudgeInterval2)
	nudgeTimer3 := time.NewTimer(nudgeInterval3)
	processingNudgeTimer := newStoppedTimer()
	bufferTicker := time.NewTicker(bufferPollInterval)
	defer func() {
		silenceTimer.Stop()
		hardCapTimer.Stop()
		metadataFallbackTimer.Stop()
		nudgeTimer1.Stop()
		nudgeTimer2.Stop()
		nudgeTimer3.Stop()
		processingNudgeTimer.Stop()
		bufferTicker.Stop()
	}()

	// The reader goroutines only unblock once their socket is closed, which
	// happens in Cleanup after Run returns; wait for them in the
	// background rather than holding the orchestrator loop open for it.
	go func() {
		if err := g.Wait(); err != nil {
			log.Printf("[Call %s] reader goroutines exited: %v", call.SessionID, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case m := <-telMsgs:
			if m.err != nil {
				session.CloseNormal()
				cancel()
				return fmt.Errorf("bridgecall: telephony read: %w", m.err)
			}
			if terminate := handleTelephonyMessage(call, m.data, silenceTimer, hardCapTimer); terminate {
				telephony.CloseWithCode(telConn, telephony.CloseNormal, "stop")
				session.CloseNormal()
				cancel()
				return nil
			}

		case m := <-aiMsgs:
			if m.err != nil {
				call.ai.MarkFailed()
				cancel()
				return fmt.Errorf("bridgecall: AI read: %w", m.err)
			}
			in, err := aiconnector.ClassifyInbound(m.data)
			if err != nil {
				log.Printf("[Call %s] skipping malformed AI record: %v", call.SessionID, err)
				continue
			}
			effect, err := call.ApplyAIInbound(time.Now(), in)
			if err != nil {
				log.Printf("[Call %s] applying AI record: %v", call.SessionID, err)
				continue
			}
			if effect.BecameReady {
				metadataFallbackTimer.Stop()
				if err := call.FlushBufferToAI(); err != nil {
					log.Printf("[Call %s] flushing buffer on ready: %v", call.SessionID, err)
				}
			}
			if len(effect.Frames) > 0 {
				nudgeTimer1.Stop()
				nudgeTimer2.Stop()
				nudgeTimer3.Stop()
				for _, f := range effect.Frames {
					if err := call.SendTelephonyFrame(f); err != nil {
						log.Printf("[Call %s] writing telephony frame: %v", call.SessionID, err)
						break
					}
					if call.ShouldLogFrame(f.Seq) {
						log.Printf("[Call %s] outbound frame seq=%d chunk=%d tsMs=%d", call.SessionID, f.Seq, f.Chunk, f.TsMs)
					}
				}
			}
			if effect.SendClear {
				if err := call.SendClear(); err != nil {
					log.Printf("[Call %s] sending clear: %v", call.SessionID, err)
				}
			}
			if effect.Terminate {
				log.Printf("[Call %s] AI reported error: %s", call.SessionID, effect.TerminateReason)
				cancel()
				return fmt.Errorf("bridgecall: AI reported error: %s", effect.TerminateReason)
			}

		case <-silenceTimer.C:
			endTurnAndNudge(call, processingNudgeTimer)

		case <-hardCapTimer.C:
			endTurnAndNudge(call, processingNudgeTimer)

		case <-metadataFallbackTimer.C:
			if call.ApplyMetadataFallback() {
				if err := call.FlushBufferToAI(); err != nil {
					log.Printf("[Call %s] flushing buffer on fallback ready: %v", call.SessionID, err)
				}
			}

		case <-nudgeTimer1.C:
			sendStartupNudgeLogged(call)
		case <-nudgeTimer2.C:
			sendStartupNudgeLogged(call)
		case <-nudgeTimer3.C:
			sendStartupNudgeLogged(call)

		case <-processingNudgeTimer.C:
			if err := call.SendProcessingNudge(); err != nil {
				log.Printf("[Call %s] sending processing nudge: %v", call.SessionID, err)
			}

		case <-bufferTicker.C:
			if call.ReadyToFlushBufferPeriodic() && call.ReadyToFlushBuffer() {
				if err := call.FlushBufferToAI(); err != nil {
					log.Printf("[Call %s] periodic buffer flush: %v", call.SessionID, err)
				}
			}
		}
	}
}

func handleTelephonyMessage(call *Call, raw []byte, silenceTimer, hardCapTimer *time.Timer) (terminate bool) {
	ev, err := telephony.ParseInbound(raw)
	if err != nil {
		log.Printf("[Call %s] skipping malformed telephony record: %v", call.SessionID, err)
		return false
	}

	switch ev.Kind {
	case telephony.KindConnected, telephony.KindMark:
		return false

	case telephony.KindMedia:
		if !ev.IsInboundTrack() {
			return false
		}
		payload, err := base64.StdEncoding.DecodeString(ev.MediaPayloadB64)
		if err != nil {
			log.Printf("[Call %s] decoding media payload: %v", call.SessionID, err)
			return false
		}
		turnStarted := call.HandleCallerFrame(time.Now(), payload)
		if turnStarted {
			startTurn(call, silenceTimer, hardCapTimer)
		} else if err := call.MaybeSendUserActivity(); err != nil {
			log.Printf("[Call %s] sending user_activity: %v", call.SessionID, err)
		}
		resetTimer(silenceTimer, call.cfg.SilenceTimeout())
		if call.ReadyToFlushBuffer() {
			if err := call.FlushBufferToAI(); err != nil {
				log.Printf("[Call %s] instant buffer flush: %v", call.SessionID, err)
			}
		}
		return false

	case telephony.KindStop:
		for _, err := range call.HandleStop() {
			log.Printf("[Call %s] stop handling: %v", call.SessionID, err)
		}
		return true

	default:
		log.Printf("[Call %s] ignoring unrecognized telephony event %q", call.SessionID, ev.RawEvent)
		return false
	}
}

func startTurn(call *Call, silenceTimer, hardCapTimer *time.Timer) {
	call.aiWriteMu.Lock()
	err := call.ai.SendUserAudioStart()
	call.aiWriteMu.Unlock()
	if err != nil {
		log.Printf("[Call %s] sending user_audio_start: %v", call.SessionID, err)
	}
	resetTimer(hardCapTimer, call.cfg.UtteranceMaxTimeout())
}

func endTurnAndNudge(call *Call, processingNudgeTimer *time.Timer) {
	ended, err := call.EndTurn()
	if err != nil {
		log.Printf("[Call %s] ending turn: %v", call.SessionID, err)
	}
	if ended {
		resetTimer(processingNudgeTimer, processingNudgeDelay)
	}
}

func sendStartupNudgeLogged(call *Call) {
	if err := call.SendStartupNudge(); err != nil {
		log.Printf("[Call %s] sending startup nudge: %v", call.SessionID, err)
	}
}

func pumpReader(ctx context.Context, read func() ([]byte, error), out chan<- wireMessage) error {
	for {
		data, err := read()
		select {
		case out <- wireMessage{data: data, err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err != nil {
			return err
		}
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

// resetTimer implements the standard safe timer-reset sequence: stop,
// drain if needed, then reset.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
