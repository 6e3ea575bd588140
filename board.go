/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Ratebox board
//
// Each board is one shared rating screen. Players type a game title and their
// name, tap one of five stars, and submit. Accepted entries are shown to every
// connected player, ranked by descending score.
//
// Features:
// - WebSockets per board ID: /board/:boardid and /board/:boardid/ws
// - Every player keeps their own pending form on the server
// - All changes to a board are applied one at a time by the board's hub
// - Rejected submissions produce a notice for the submitting player only
// - Boards expire after a configurable idle timeout; connected clients keep them alive
// - Random 8-char board IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current board, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/lmittmann/tint"
	"github.com/patrickmn/go-cache"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/ratebox/ranking"
)

var ErrBoardClosed = errors.New("board closed")

// Messages coming from clients
type ClientMessage struct {
	Type  string `json:"type"`            // "title", "rater", "score", "submit"
	Value string `json:"value,omitempty"` // title / rater
	Score int    `json:"score,omitempty"` // score
}

// RankingMessage carries the full sorted view of the board.
type RankingMessage struct {
	Type    string           `json:"type"` // "ranking"
	Entries []ranking.Ranked `json:"entries"`
}

// DraftMessage tells a client what its pending form currently holds.
type DraftMessage struct {
	Type  string `json:"type"` // "draft"
	Title string `json:"title"`
	Rater string `json:"rater"`
	Score int    `json:"score"`
}

// NoticeMessage is sent only to a client whose submission was rejected.
type NoticeMessage struct {
	Type    string `json:"type"` // "notice"
	Message string `json:"message"`
}

func newRankingMessage(b ranking.Board) RankingMessage {
	return RankingMessage{
		Type:    "ranking",
		Entries: b.Ranking(),
	}
}

func newDraftMessage(d ranking.Draft) DraftMessage {
	return DraftMessage{
		Type:  "draft",
		Title: d.Title,
		Rater: d.Rater,
		Score: d.Score,
	}
}

type Client struct {
	conn  *websocket.Conn
	send  chan any
	draft ranking.Draft
}

type clientEvent struct {
	client *Client
	event  ranking.Event
}

type submitResult struct {
	entry ranking.Entry
	err   error
}

type submitRequest struct {
	sub   ranking.Submission
	reply chan submitResult
}

// Hub owns one board. Only the goroutine running Hub.run reads or writes
// board, clients, or any client's draft.
type Hub struct {
	id      string
	clients map[*Client]bool
	board   ranking.Board

	register chan *Client
	unreg    chan *Client
	events   chan clientEvent
	submits  chan submitRequest
	views    chan chan []ranking.Ranked

	done     chan struct{}
	stopOnce sync.Once

	cfg     *Config
	metrics *boardMetrics
	touch   func()
	newID   func() string
	now     func() time.Time
}

func newHub(cfg *Config, boardID string, metrics *boardMetrics, touch func()) *Hub {
	return &Hub{
		id:       boardID,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		events:   make(chan clientEvent),
		submits:  make(chan submitRequest),
		views:    make(chan chan []ranking.Ranked),
		done:     make(chan struct{}),
		cfg:      cfg,
		metrics:  metrics,
		touch:    touch,
		newID:    ranking.NewID,
		now:      time.Now,
	}
}

func (h *Hub) run() {
	// Connected clients keep the board alive even when nobody is typing.
	keepalive := time.NewTicker(max(h.cfg.boardTimeout/4, time.Millisecond))
	defer keepalive.Stop()

	for {
		select {
		case <-keepalive.C:
			if len(h.clients) > 0 {
				h.touch()
			}

		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.metrics.clients.Inc()

			h.sendLocked(c, newDraftMessage(c.draft))
			h.sendLocked(c, newRankingMessage(h.board))

		case c := <-h.unreg:
			h.touch()
			h.dropLocked(c)

		case ev := <-h.events:
			h.touch()
			h.handleEvent(ev)

		case req := <-h.submits:
			h.touch()
			h.handleSubmit(req)

		case reply := <-h.views:
			reply <- h.board.Ranking()

		case <-h.done:
			for c := range h.clients {
				_ = c.conn.Close()
				h.dropLocked(c)
			}

			return
		}
	}
}

// The Locked suffix marks helpers that may only be called from Hub.run.

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.metrics.clients.Dec()
	}
}

func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *Hub) broadcastRankingLocked() {
	msg := newRankingMessage(h.board)

	for c := range h.clients {
		h.sendLocked(c, msg)
	}
}

func (h *Hub) handleEvent(ev clientEvent) {
	c := ev.client
	if !h.clients[c] {
		return
	}

	event := ev.event

	_, submitted := event.(ranking.Submitted)
	if submitted {
		event = ranking.Submitted{ID: h.newID(), At: h.now()}
	}

	next := ranking.Reduce(ranking.State{Draft: c.draft, Board: h.board}, event)

	c.draft = next.Draft
	grew := next.Board.Len() > h.board.Len()
	h.board = next.Board

	if !submitted {
		return
	}

	h.metrics.submission(sourceSocket, grew)

	if !grew {
		h.cfg.log.Info("BOARD: Rejected submission", "board", h.id)
		h.sendLocked(c, NoticeMessage{Type: "notice", Message: next.Notice})

		return
	}

	h.cfg.log.Info("BOARD: Accepted submission", "board", h.id, "entries", h.board.Len())
	h.sendLocked(c, newDraftMessage(c.draft))
	h.broadcastRankingLocked()
}

func (h *Hub) handleSubmit(req submitRequest) {
	board, entry, err := h.board.Accept(req.sub, h.newID(), h.now())

	h.metrics.submission(sourceAPI, err == nil)

	if err == nil {
		h.board = board
		h.cfg.log.Info("BOARD: Accepted submission", "board", h.id, "entries", h.board.Len())
		h.broadcastRankingLocked()
	} else {
		h.cfg.log.Info("BOARD: Rejected submission", "board", h.id, tint.Err(err))
	}

	req.reply <- submitResult{entry: entry, err: err}
}

// Submit runs s through the same validation and append path as a websocket
// submission.
func (h *Hub) Submit(ctx context.Context, s ranking.Submission) (ranking.Entry, error) {
	req := submitRequest{
		sub:   s,
		reply: make(chan submitResult, 1),
	}

	if h.stopped() {
		return ranking.Entry{}, ErrBoardClosed
	}

	select {
	case h.submits <- req:
	case <-h.done:
		return ranking.Entry{}, ErrBoardClosed
	case <-ctx.Done():
		return ranking.Entry{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.entry, res.err
	case <-h.done:
		return ranking.Entry{}, ErrBoardClosed
	case <-ctx.Done():
		return ranking.Entry{}, ctx.Err()
	}
}

// Ranking returns the board's current sorted view.
func (h *Hub) Ranking(ctx context.Context) ([]ranking.Ranked, error) {
	reply := make(chan []ranking.Ranked, 1)

	if h.stopped() {
		return nil, ErrBoardClosed
	}

	select {
	case h.views <- reply:
	case <-h.done:
		return nil, ErrBoardClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ranked := <-reply:
		return ranked, nil
	case <-h.done:
		return nil, ErrBoardClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// stop ends the hub's loop and disconnects its clients.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) enqueue(c *Client, ev ranking.Event) bool {
	select {
	case h.events <- clientEvent{client: c, event: ev}:
		return true
	case <-h.done:
		return false
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// BoardManager holds a set of hubs keyed by board ID, so each $path/$boardid
// is its own isolated board.
//
// The cache only tracks idle deadlines. live records which hub owns an ID, so
// a hub whose deadline passed but which the janitor has not swept yet can
// still be renewed.
type BoardManager struct {
	cfg     *Config
	metrics *boardMetrics

	mu     sync.Mutex
	live   map[string]*Hub
	boards *cache.Cache
}

func newBoardManager(cfg *Config, metrics *boardMetrics) *BoardManager {
	bm := &BoardManager{
		cfg:     cfg,
		metrics: metrics,
		live:    make(map[string]*Hub),
		boards:  cache.New(cfg.boardTimeout, cfg.boardTimeout/2),
	}

	bm.boards.OnEvicted(bm.evict)

	return bm
}

// evict discards a hub whose idle deadline passed. It runs on the goroutine
// that called Delete or DeleteExpired, so neither may be called with mu held.
func (bm *BoardManager) evict(boardID string, v any) {
	hub, ok := v.(*Hub)
	if !ok {
		return
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.live[boardID] != hub {
		return
	}

	// Renewed between the janitor's sweep and this callback.
	if cur, ok := bm.boards.Get(boardID); ok && cur == hub {
		return
	}

	delete(bm.live, boardID)
	bm.metrics.boards.Dec()
	hub.stop()
	bm.cfg.log.Info("BOARD: Discarded idle board", "board", boardID)
}

// lookupLocked returns the running hub for boardID. Callers hold mu.
func (bm *BoardManager) lookupLocked(boardID string) (*Hub, bool) {
	hub, ok := bm.live[boardID]
	if !ok || hub.stopped() {
		return nil, false
	}

	return hub, true
}

func (bm *BoardManager) getHub(boardID string) *Hub {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if hub, ok := bm.lookupLocked(boardID); ok {
		bm.boards.SetDefault(boardID, hub)

		return hub
	}

	var hub *Hub
	hub = newHub(bm.cfg, boardID, bm.metrics, func() { bm.refresh(boardID, hub) })
	bm.live[boardID] = hub
	bm.boards.SetDefault(boardID, hub)
	bm.metrics.boards.Inc()

	go hub.run()

	return hub
}

// refresh pushes back the idle deadline of hub, unless it has already been
// replaced or discarded. An expired but unswept hub is renewed.
func (bm *BoardManager) refresh(boardID string, hub *Hub) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if cur, ok := bm.lookupLocked(boardID); ok && cur == hub {
		bm.boards.SetDefault(boardID, hub)
	}
}

// newBoardID generates a crypto-random board ID and ensures it doesn't
// collide with existing boards.
func (bm *BoardManager) newBoardID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const limit = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < cap(out) {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}

			for _, b := range buf {
				if b <= limit && len(out) < cap(out) {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}

		id := string(out)

		bm.mu.Lock()
		_, exists := bm.live[id]
		bm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// closeAll stops every hub. Used on shutdown.
func (bm *BoardManager) closeAll() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for id, hub := range bm.live {
		delete(bm.live, id)
		bm.metrics.boards.Dec()
		hub.stop()
	}

	// Flush does not run OnEvicted, so holding mu here is safe.
	bm.boards.Flush()
}

// validBoardID matches the IDs newBoardID produces.
var validBoardID = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

// boardIDFrom returns the :boardid parameter, or writes a 404 and returns
// false when it is not a well-formed board ID.
func boardIDFrom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (string, bool) {
	boardID := ps.ByName("boardid")
	if !validBoardID.MatchString(boardID) {
		http.NotFound(w, r)

		return "", false
	}

	return boardID, true
}

// WebSocket handler that picks the hub based on :boardid
func serveWSForManager(cfg *Config, bm *BoardManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		boardID, ok := boardIDFrom(w, r, ps)
		if !ok {
			return
		}

		hub := bm.getHub(boardID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.log.Warn("SERVE: Websocket upgrade failed", "board", boardID, "ip", realIP(r), tint.Err(err))
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		cfg.log.Info("BOARD: Client connected", "board", boardID, "ip", realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		var ev ranking.Event

		switch msg.Type {
		case "title":
			ev = ranking.TitleChanged{Title: msg.Value}
		case "rater":
			ev = ranking.RaterChanged{Rater: msg.Value}
		case "score":
			ev = ranking.ScoreSelected{Score: msg.Score}
		case "submit":
			ev = ranking.Submitted{}
		default:
			// ignore unknown types
			continue
		}

		if !h.enqueue(c, ev) {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current board URL using go-qrcode.
func qrHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		_, ok := boardIDFrom(w, r, ps)
		if !ok {
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:boardid/qr; strip trailing "/qr" to get the board URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			reportError(errs, err)
		}
	}
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, ok := boardIDFrom(w, r, ps); !ok {
			return
		}

		data, err := assets.ReadFile("assets/board/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			reportError(errs, err)
		}
	}
}

// redirectNewBoard handles GET /path by generating a new random board ID
// (with server-side collision detection) and redirecting to /path/:boardid.
func redirectNewBoard(cfg *Config, path string, bm *BoardManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		boardID := bm.newBoardID()
		cfg.log.Info("BOARD: Created board", "path", path+"/"+boardID, "ip", realIP(r))
		http.Redirect(w, r, path+"/"+boardID, http.StatusTemporaryRedirect)
	}
}

// registerBoards sets up routes so that:
//   - $path                     → redirects to new random board (8-char ID)
//   - $path/:boardid            → HTML client
//   - $path/:boardid/ws         → WebSocket for that board
//   - $path/:boardid/qr         → PNG QR code for that board URL
//   - $path/:boardid/entries    → JSON ranking (GET) and submission (POST)
func registerBoards(cfg *Config, path string, bm *BoardManager, mux *httprouter.Router, errs chan<- error) {
	path = cfg.prefix + path

	mux.GET(path, redirectNewBoard(cfg, path, bm))

	mux.GET(path+"/:boardid", getIndexHandler(cfg, errs))

	mux.GET(path+"/:boardid/ws", serveWSForManager(cfg, bm))

	mux.GET(path+"/:boardid/qr", qrHandler(cfg, errs))

	mux.GET(path+"/:boardid/entries", serveEntries(cfg, bm, errs))
	mux.POST(path+"/:boardid/entries", submitEntry(cfg, bm, errs))
}
