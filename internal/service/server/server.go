package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"group_chat/internal/model"
	eventRepo "group_chat/internal/repository/event"
	"group_chat/internal/service/redis"
	"group_chat/internal/transport"
	"group_chat/internal/utils/log"
)

type (
	// HttpServer is the development relay: it accepts signed events over
	// websocket, stores them for filter queries, and routes confidential
	// wraps to their recipient, queueing them while the recipient is
	// offline.
	HttpServer struct {
		addr string

		mu      sync.Mutex
		clients map[string]*client

		eventRepo    *eventRepo.EventRepo
		redisService *redis.RedisService
	}

	client struct {
		pubkey  string
		ws      *websocket.Conn
		writeMu sync.Mutex

		mu   sync.Mutex
		subs map[string]*transport.Filter
	}
)

func NewHttpServer(addr string, repo *eventRepo.EventRepo, redisSvc *redis.RedisService) *HttpServer {
	return &HttpServer{
		addr:         addr,
		clients:      make(map[string]*client),
		eventRepo:    repo,
		redisService: redisSvc,
	}
}

func (s *HttpServer) Run() error {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.HandleWS()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	log.Info("relay listening", zap.String("addr", s.addr))
	return http.ListenAndServe(s.addr, r)
}

func (s *HttpServer) HandleWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		pubkey := r.URL.Query().Get("pubkey")
		if pubkey == "" {
			http.Error(w, "pubkey cannot be empty", http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		cl := &client{
			pubkey: pubkey,
			ws:     ws,
			subs:   make(map[string]*transport.Filter),
		}
		if !s.register(cl) {
			log.Warn("rejecting duplicate connection", zap.String("pubkey", pubkey))
			ws.Close()
			return
		}

		go s.processWSMessage(cl)
		if err := s.ForwardPendingWraps(pubkey); err != nil {
			log.Error("forward pending wraps failed", zap.Error(err))
		}
	}
}

// register claims the routing entry for a client's pubkey. It reports
// false when another connection already holds it, so two simultaneous
// connects can never overwrite each other.
func (s *HttpServer) register(cl *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[cl.pubkey]; ok {
		return false
	}
	s.clients[cl.pubkey] = cl
	return true
}

func (s *HttpServer) processWSMessage(cl *client) {
	for {
		var frame transport.Frame
		if err := cl.ws.ReadJSON(&frame); err != nil {
			log.Debug("client socket closed", zap.String("pubkey", cl.pubkey), zap.Error(err))
			s.mu.Lock()
			delete(s.clients, cl.pubkey)
			s.mu.Unlock()
			cl.ws.Close()
			return
		}

		switch frame.Type {
		case transport.FrameEvent:
			if frame.Event != nil {
				s.handleEvent(cl, frame.Event)
			}
		case transport.FrameReq:
			if frame.Filter != nil {
				s.handleReq(cl, frame.SubID, frame.Filter)
			}
		case transport.FrameClose:
			cl.mu.Lock()
			delete(cl.subs, frame.SubID)
			cl.mu.Unlock()
		}
	}
}

func (s *HttpServer) handleEvent(cl *client, ev *model.Event) {
	if err := ev.Verify(); err != nil {
		cl.write(&transport.Frame{Type: transport.FrameOK, ID: ev.ID, OK: false, Reason: err.Error()})
		return
	}

	if ev.Kind == model.KindGiftWrap {
		s.routeWrap(ev)
		cl.write(&transport.Frame{Type: transport.FrameOK, ID: ev.ID, OK: true})
		return
	}

	if err := s.eventRepo.Insert(context.TODO(), ev); err != nil {
		log.Error("store event failed", zap.String("id", ev.ID), zap.Error(err))
		cl.write(&transport.Frame{Type: transport.FrameOK, ID: ev.ID, OK: false, Reason: "storage failure"})
		return
	}
	cl.write(&transport.Frame{Type: transport.FrameOK, ID: ev.ID, OK: true})

	s.broadcast(ev)
}

// routeWrap delivers a confidential wrap to its recipient if connected,
// otherwise queues it until they are. Wraps past their expiration tag
// are dropped either way.
func (s *HttpServer) routeWrap(ev *model.Event) {
	if expired(ev) {
		log.Debug("dropping expired wrap", zap.String("id", ev.ID))
		return
	}

	recipient := ev.Tags.Value(model.TagRecipient)
	if recipient == "" {
		log.Warn("wrap without recipient", zap.String("id", ev.ID))
		return
	}

	s.mu.Lock()
	cl, connected := s.clients[recipient]
	s.mu.Unlock()

	if connected {
		if err := cl.write(&transport.Frame{Type: transport.FrameEvent, SubID: transport.InboxSubID, Event: ev}); err == nil {
			return
		}
	}
	if err := s.QueueWrap(context.TODO(), recipient, ev); err != nil {
		log.Error("queue wrap failed", zap.String("recipient", recipient), zap.Error(err))
	}
}

// broadcast pushes a stored event to every live subscription matching
// its kind and author.
func (s *HttpServer) broadcast(ev *model.Event) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, cl := range s.clients {
		clients = append(clients, cl)
	}
	s.mu.Unlock()

	for _, cl := range clients {
		cl.mu.Lock()
		for subID, filter := range cl.subs {
			if filter.Matches(ev) {
				cl.write(&transport.Frame{Type: transport.FrameEvent, SubID: subID, Event: ev})
			}
		}
		cl.mu.Unlock()
	}
}

func (s *HttpServer) handleReq(cl *client, subID string, filter *transport.Filter) {
	events, err := s.eventRepo.Query(context.TODO(), filter.Kinds, filter.Authors, filter.Limit)
	if err != nil {
		log.Error("query events failed", zap.Error(err))
	}
	for i := range events {
		cl.write(&transport.Frame{Type: transport.FrameEvent, SubID: subID, Event: &events[i]})
	}
	cl.write(&transport.Frame{Type: transport.FrameEOSE, SubID: subID})

	cl.mu.Lock()
	cl.subs[subID] = filter
	cl.mu.Unlock()
}

// ForwardPendingWraps drains the recipient's offline queue onto their
// fresh connection.
func (s *HttpServer) ForwardPendingWraps(pubkey string) error {
	wraps, err := s.PendingWraps(context.TODO(), pubkey)
	if err != nil {
		log.Error("ForwardPendingWraps failed: ", zap.Error(err))
		return err
	}

	s.mu.Lock()
	cl, ok := s.clients[pubkey]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	for _, wrap := range wraps {
		cl.write(&transport.Frame{Type: transport.FrameEvent, SubID: transport.InboxSubID, Event: wrap})
	}
	return nil
}

func (cl *client) write(frame *transport.Frame) error {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()
	return cl.ws.WriteJSON(frame)
}

// expired reports whether an event's expiration tag, if present, has
// passed.
func expired(ev *model.Event) bool {
	exp, ok := ev.Tags.Expiration()
	if !ok {
		return false
	}
	return exp.Before(time.Now())
}
