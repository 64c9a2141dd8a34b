// Package tui is a terminal client for one surface of a running host. It connects to the
// surface's message channel like a browser page does.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"prdraft/internal/client"
	"prdraft/internal/panels"
	"prdraft/internal/store"
)

type Options struct {
	Client    *client.Client
	Kind      string
	Key       string
	Placement string
}

// Run opens (or reveals) the surface for opts.Key and runs the terminal UI until the user
// quits, ctx ends or the host goes away.
func Run(ctx context.Context, opts Options) error {
	if opts.Client == nil {
		return errors.New("tui: no client")
	}
	if opts.Kind == "" {
		opts.Kind = panels.KindPreview
	}
	info, err := opts.Client.Show(ctx, opts.Kind, opts.Key, opts.Placement)
	if err != nil {
		return err
	}
	conn, err := opts.Client.Dial(ctx, info.ID)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := &connWriter{conn: conn}
	// A revealed surface keeps its kind, so render what the host actually has.
	m := newModel(info.Kind, info.Key, w.send)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go pump(conn, p.Send)

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// pump forwards host messages to the program until the connection ends.
func pump(conn *websocket.Conn, send func(tea.Msg)) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			send(closedMsg{err: err})
			return
		}
		send(payloadMsg(data))
	}
}

// connWriter serializes writes; tea commands run on their own goroutines.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) send(a store.Action) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, b)
}
