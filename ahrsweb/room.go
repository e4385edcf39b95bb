// Package ahrsweb streams attitude estimates to browser viewers over websockets.
// A Room relays every message it receives, from a remote Publisher or from
// Publish, to all connected clients.
package ahrsweb

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/westphae/goahrs/internal/log"
)

// Port is the default port for the AHRS data publication.
const Port = 8000

// Path is where a Room is usually mounted.
const Path = "/ahrsweb"

type Room struct {
	// forward is a channel that holds incoming messages
	// that should be forwarded to the other clients.
	forward chan []byte
	// join is a channel for clients wishing to join the room.
	join chan *client
	// leave is a channel for clients wishing to leave the room.
	leave chan *client
	// clients holds all current clients in this room.
	clients map[*client]bool
	// done is closed when Run returns.
	done chan struct{}
}

// NewRoom makes a new room that is ready to go.
func NewRoom() *Room {
	return &Room{
		forward: make(chan []byte),
		join:    make(chan *client),
		leave:   make(chan *client),
		clients: make(map[*client]bool),
		done:    make(chan struct{}),
	}
}

// Run relays messages until ctx is done, then disconnects every client.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			for client := range r.clients {
				delete(r.clients, client)
				close(client.send)
			}
			return
		case client := <-r.join:
			r.clients[client] = true
			log.Debug("ahrsweb: client joined", "clients", len(r.clients))
		case client := <-r.leave:
			if r.clients[client] {
				delete(r.clients, client)
				close(client.send)
			}
			log.Debug("ahrsweb: client left", "clients", len(r.clients))
		case msg := <-r.forward:
			// forward message to all clients
			for client := range r.clients {
				select {
				case client.send <- msg:
				default:
					log.Debug("ahrsweb: client too slow, message dropped")
				}
			}
		}
	}
}

// Broadcast queues msg for every client. It returns false once the room has stopped.
func (r *Room) Broadcast(msg []byte) bool {
	select {
	case r.forward <- msg:
		return true
	case <-r.done:
		return false
	}
}

// Send publishes one record to the room's clients.
func (r *Room) Send(d *AHRSData) error {
	msg, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "ahrsweb: marshalling data")
	}
	if !r.Broadcast(msg) {
		return errors.New("ahrsweb: room is closed")
	}
	return nil
}

const (
	socketBufferSize  = 1024
	messageBufferSize = 64
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn("ahrsweb: upgrade failed", "remote", req.RemoteAddr, "err", err)
		return
	}
	client := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
		room:   r,
	}
	select {
	case r.join <- client:
	case <-r.done:
		socket.Close()
		return
	}
	defer func() {
		select {
		case r.leave <- client:
		case <-r.done:
		}
	}()
	go client.write()
	client.read()
}
