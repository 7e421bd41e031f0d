// Package bus implements the Progress Bus: long-lived bidirectional
// WebSocket sessions fanning out per-job progress to subscribed clients.
// Grounded on two teacher sources: the sse.Broadcaster's single-actor
// register/unregister/broadcast channel pattern (best-effort, non-blocking
// fan-out so one slow subscriber cannot block the others) and the nested
// prototype module's gorilla/websocket Hub/Client session handling.
package bus

import (
	"encoding/json"
	"sync"
	"time"

	"audiolevel/pkg/logger"
)

const maxSubscriptionsPerSession = 100

// ClientMessage is the tagged union of frames a client may send.
type ClientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId,omitempty"`
}

// ServerMessage is the tagged union of frames the bus may send.
type ServerMessage struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId,omitempty"`
	Percent     int    `json:"percent,omitempty"`
	Stage       string `json:"stage,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Message     string `json:"message,omitempty"`
	Code        string `json:"code,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Metrics     any    `json:"metrics,omitempty"`
}

type registration struct {
	session *Session
}

type subscription struct {
	sessionID string
	jobID     string
}

type publication struct {
	jobID string
	msg   ServerMessage
}

// Bus is the single actor owning the sessionId->session and
// jobId->set<sessionId> tables, per the design note that both maps must
// live under one logical mutex or actor.
type Bus struct {
	sessions       map[string]*Session
	jobSubscribers map[string]map[string]bool

	register   chan registration
	unregister chan string
	subscribe  chan subscription
	unsubs     chan subscription
	publish    chan publication
	shutdown   chan struct{}

	mu sync.RWMutex // guards reads from SweepIdle; the actor owns writes
}

// New constructs a Bus and starts its actor loop.
func New() *Bus {
	b := &Bus{
		sessions:       make(map[string]*Session),
		jobSubscribers: make(map[string]map[string]bool),
		register:       make(chan registration),
		unregister:     make(chan string),
		subscribe:      make(chan subscription),
		unsubs:         make(chan subscription),
		publish:        make(chan publication, 256),
		shutdown:       make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bus) loop() {
	for {
		select {
		case reg := <-b.register:
			b.mu.Lock()
			b.sessions[reg.session.ID] = reg.session
			b.mu.Unlock()

		case sessionID := <-b.unregister:
			b.mu.Lock()
			if s, ok := b.sessions[sessionID]; ok {
				for jobID := range s.subscribedJobs {
					if subs, ok := b.jobSubscribers[jobID]; ok {
						delete(subs, sessionID)
						if len(subs) == 0 {
							delete(b.jobSubscribers, jobID)
						}
					}
				}
				close(s.send)
				delete(b.sessions, sessionID)
			}
			b.mu.Unlock()

		case sub := <-b.subscribe:
			b.mu.Lock()
			if s, ok := b.sessions[sub.sessionID]; ok {
				if len(s.subscribedJobs) >= maxSubscriptionsPerSession {
					b.mu.Unlock()
					s.sendMessage(ServerMessage{Type: "error", Message: "subscription limit reached", Code: "SUBSCRIPTION_LIMIT"})
					continue
				}
				s.subscribedJobs[sub.jobID] = true
				if b.jobSubscribers[sub.jobID] == nil {
					b.jobSubscribers[sub.jobID] = make(map[string]bool)
				}
				b.jobSubscribers[sub.jobID][sub.sessionID] = true
				b.mu.Unlock()
				s.sendMessage(ServerMessage{Type: "subscribed", JobID: sub.jobID})
			} else {
				b.mu.Unlock()
			}

		case unsub := <-b.unsubs:
			b.mu.Lock()
			if s, ok := b.sessions[unsub.sessionID]; ok {
				delete(s.subscribedJobs, unsub.jobID)
				if subs, ok := b.jobSubscribers[unsub.jobID]; ok {
					delete(subs, unsub.sessionID)
				}
				b.mu.Unlock()
				s.sendMessage(ServerMessage{Type: "unsubscribed", JobID: unsub.jobID})
			} else {
				b.mu.Unlock()
			}

		case pub := <-b.publish:
			b.mu.RLock()
			subs := b.jobSubscribers[pub.jobID]
			targets := make([]*Session, 0, len(subs))
			for sessionID := range subs {
				if s, ok := b.sessions[sessionID]; ok {
					targets = append(targets, s)
				}
			}
			b.mu.RUnlock()
			for _, s := range targets {
				s.sendMessage(pub.msg)
			}

		case <-b.shutdown:
			return
		}
	}
}

// Register adds a session that has already been constructed by the HTTP
// upgrade handler.
func (b *Bus) Register(s *Session) {
	b.register <- registration{session: s}
}

// Unregister removes a session and drops all of its subscriptions.
func (b *Bus) Unregister(sessionID string) {
	select {
	case b.unregister <- sessionID:
	case <-time.After(time.Second):
		logger.Warn("bus: unregister timed out", "session_id", sessionID)
	}
}

// Subscribe attaches a session to a job's progress stream. Subscribing to
// an unknown JobId is not an error; events flow if the job later appears.
func (b *Bus) Subscribe(sessionID, jobID string) {
	b.subscribe <- subscription{sessionID: sessionID, jobID: jobID}
}

// Unsubscribe detaches a session from a job's progress stream.
func (b *Bus) Unsubscribe(sessionID, jobID string) {
	b.unsubs <- subscription{sessionID: sessionID, jobID: jobID}
}

// Publish fans out an event to every session subscribed to jobID.
// Best-effort: a slow or broken subscriber never blocks the others.
func (b *Bus) Publish(jobID string, msg ServerMessage) {
	msg.JobID = jobID
	select {
	case b.publish <- publication{jobID: jobID, msg: msg}:
	default:
		logger.Warn("bus: publish queue full, dropping event", "job_id", jobID)
	}
}

// Progress publishes a progress frame.
func (b *Bus) Progress(jobID string, percent int, stage string) {
	b.Publish(jobID, ServerMessage{Type: "progress", Percent: percent, Stage: stage})
}

// Complete publishes a completion frame.
func (b *Bus) Complete(jobID, downloadURL string, metrics any) {
	b.Publish(jobID, ServerMessage{Type: "complete", DownloadURL: downloadURL, Metrics: metrics})
}

// Error publishes an error frame.
func (b *Bus) Error(jobID, message, code string) {
	b.Publish(jobID, ServerMessage{Type: "error", Message: message, Code: code})
}

// SweepIdle closes every session that has not sent an inbound frame
// within idleTimeout, per the Janitor's heartbeat sweep.
func (b *Bus) SweepIdle(idleTimeout time.Duration) {
	b.mu.RLock()
	var stale []*Session
	for _, s := range b.sessions {
		if time.Since(s.LastPingAt()) > idleTimeout {
			stale = append(stale, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range stale {
		logger.Debug("bus: closing idle session", "session_id", s.ID)
		s.Close()
	}
}

// SessionCount returns the number of live sessions, for diagnostics.
func (b *Bus) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

func marshal(msg ServerMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		return []byte(`{"type":"error","message":"internal encode error"}`)
	}
	return data
}
