package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kimmove-blip/Stock-sub000/internal/event"
	"github.com/kimmove-blip/Stock-sub000/internal/infra"
)

var errNoCodes = errors.New("no codes to subscribe")

// CodesFunc reports the stock codes currently worth streaming. It is
// consulted on every (re)connect and resubscribe.
type CodesFunc func() []string

type subscribeFrame struct {
	Op    string   `json:"op"`
	Codes []string `json:"codes"`
}

type quoteFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Price int64  `json:"price"`
}

// Worker streams live quotes from the backend and feeds them into the
// coordinator's inbox. Connection lifecycle (reconnects, pings, read
// deadlines) is delegated to the shared BaseWSWorker.
type Worker struct {
	base  *infra.BaseWSWorker
	url   string
	token string
	codes CodesFunc
	sink  chan<- event.Event
}

func NewWorker(wsURL, token string, codes CodesFunc, sink chan<- event.Event) *Worker {
	w := &Worker{
		url:   wsURL,
		token: token,
		codes: codes,
		sink:  sink,
	}
	w.base = infra.NewBaseWSWorker(w)
	return w
}

func (w *Worker) Start(ctx context.Context) { w.base.Start(ctx) }
func (w *Worker) Stop()                     { w.base.Stop() }

// Resubscribe pushes a fresh subscription set on the open connection,
// e.g. after a refresh changed the suggestion lists. A connection error
// here is left to the read loop, which will reconnect and resubscribe.
func (w *Worker) Resubscribe() {
	frame, err := subscribePayload(w.codes())
	if err != nil {
		return
	}
	if err := w.base.Write(websocket.TextMessage, frame); err != nil {
		slog.Warn("Quote resubscribe failed", "err", err)
	}
}

func subscribePayload(codes []string) ([]byte, error) {
	if len(codes) == 0 {
		return nil, errNoCodes
	}
	return json.Marshal(subscribeFrame{Op: "subscribe", Codes: codes})
}

func (w *Worker) ID() string  { return "quotes" }
func (w *Worker) URL() string { return w.url }

func (w *Worker) Headers() http.Header {
	h := http.Header{}
	if w.token != "" {
		h.Set("Authorization", "Bearer "+w.token)
	}
	return h
}

func (w *Worker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	frame, err := subscribePayload(w.codes())
	if err != nil {
		// Nothing to stream yet; stay connected and resubscribe later.
		slog.Debug("Quote stream connected with no codes")
		return nil
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (w *Worker) OnMessage(ctx context.Context, msg []byte) {
	var frame quoteFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		slog.Warn("Unparseable quote frame", "err", err)
		return
	}
	if frame.Code == "" || frame.Price <= 0 {
		return
	}

	select {
	case w.sink <- event.Quote{StockCode: frame.Code, Price: frame.Price}:
	case <-ctx.Done():
	}
}
