package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"padbridge/internal/protocol"

	"github.com/gorilla/websocket"
)

// ErrUnknownSetting is returned when the bridge does not offer a setting
var ErrUnknownSetting = errors.New("unknown setting")

// SettingsClient opens short settings sessions on a remote bridge
type SettingsClient struct {
	hostAddr string
	token    string
	dialer   *websocket.Dialer
}

// NewSettingsClient creates a client for the bridge at hostAddr ("ip:port")
func NewSettingsClient(hostAddr, token string) *SettingsClient {
	return &SettingsClient{
		hostAddr: hostAddr,
		token:    token,
		dialer:   websocket.DefaultDialer,
	}
}

func (c *SettingsClient) dial(ctx context.Context) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("settings session refused: %s", resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// Items opens a session and returns the offered toggles
func (c *SettingsClient) Items(ctx context.Context) ([]protocol.ToggleItem, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer closeSession(conn)

	var items protocol.ItemsPayload
	if err := readUntil(conn, protocol.TypeItems, &items); err != nil {
		return nil, err
	}
	return items.Items, nil
}

// Apply opens a session, changes one toggle and closes the session again,
// which makes the bridge persist the value. It returns the status reported
// after the change.
func (c *SettingsClient) Apply(ctx context.Context, key string, value bool) (protocol.StatusPayload, error) {
	var status protocol.StatusPayload

	conn, err := c.dial(ctx)
	if err != nil {
		return status, err
	}
	defer closeSession(conn)

	var items protocol.ItemsPayload
	if err := readUntil(conn, protocol.TypeItems, &items); err != nil {
		return status, err
	}
	found := false
	for _, it := range items.Items {
		if it.Key == key {
			found = true
			break
		}
	}
	if !found {
		return status, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	// The session's initial status precedes any reply to our change
	if err := readUntil(conn, protocol.TypeStatus, &status); err != nil {
		return status, err
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeSet,
		Payload: protocol.SetPayload{Key: key, Value: value},
	}); err != nil {
		return status, err
	}

	if err := readUntil(conn, protocol.TypeStatus, &status); err != nil {
		return status, err
	}
	log.Printf("Settings Client: %s set to %v on %s", key, value, c.hostAddr)
	return status, nil
}

// readUntil skips messages until one of type want arrives and decodes its
// payload into out. An error message from the bridge is returned as error.
func readUntil(conn *websocket.Conn, want protocol.MessageType, out interface{}) error {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var raw struct {
			Type    protocol.MessageType `json:"type"`
			Payload json.RawMessage      `json:"payload"`
		}
		if err := conn.ReadJSON(&raw); err != nil {
			return err
		}

		switch raw.Type {
		case want:
			return json.Unmarshal(raw.Payload, out)
		case protocol.TypeError:
			var e protocol.ErrorPayload
			json.Unmarshal(raw.Payload, &e)
			return errors.New(e.Message)
		}
	}
}

func closeSession(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}
