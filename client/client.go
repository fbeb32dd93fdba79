// Package client is a programmatic websocket client for the translation
// session endpoint, used by command line tooling and integration tests.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"transvoice/model"
)

// Client holds one open session connection. Writes are serialized with a
// mutex; Events delivers everything the server pushes until the
// connection closes.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	events  chan model.ServerEvent
	readErr error
	once    sync.Once
}

// Dial connects to a running server and opens the session socket.
// addr is a host:port, e.g. "127.0.0.1:8080".
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/session"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial session socket")
	}
	c := &Client{
		conn:   conn,
		events: make(chan model.ServerEvent, 32),
	}
	go c.readLoop()
	return c, nil
}

// Events is the stream of server events. It is closed when the
// connection drops; Err reports why.
func (c *Client) Events() <-chan model.ServerEvent { return c.events }

// Err returns the read error that ended the event stream, if any.
func (c *Client) Err() error { return c.readErr }

// Start begins a session with the given language pair and audio sample
// rate. Zero values fall back to the server's configuration.
func (c *Client) Start(lang1, lang2 string, sampleRate int) error {
	ev := model.ClientEvent{Event: model.EventStart}
	ev.Start.Language1 = lang1
	ev.Start.Language2 = lang2
	ev.Start.SampleRate = sampleRate
	return c.send(ev)
}

// SendAudio streams a chunk of raw PCM16LE audio into the session.
func (c *Client) SendAudio(pcm []byte) error {
	ev := model.ClientEvent{Event: model.EventMedia}
	ev.Media.Payload = base64.StdEncoding.EncodeToString(pcm)
	return c.send(ev)
}

// SendText injects typed text as if it had been spoken. Speaker and
// language may be empty; the server then attributes by content.
func (c *Client) SendText(speaker, content, lang string) error {
	ev := model.ClientEvent{Event: model.EventText}
	ev.Text.Speaker = speaker
	ev.Text.Content = content
	ev.Text.Language = lang
	return c.send(ev)
}

// Stop asks the server to end the session.
func (c *Client) Stop() error {
	return c.send(model.ClientEvent{Event: model.EventStop})
}

// Close tears down the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() { err = c.conn.Close() })
	return err
}

func (c *Client) send(ev model.ClientEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal client event")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var ev model.ServerEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.readErr = err
			}
			return
		}
		c.events <- ev
	}
}

// DecodeAudio returns the raw audio bytes of an audio event payload.
func DecodeAudio(p *model.AudioPayload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("no audio payload")
	}
	return base64.StdEncoding.DecodeString(p.Payload)
}
