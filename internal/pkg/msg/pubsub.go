package msg

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSubscribed is returned when a pid subscribes twice to the same topic.
var ErrSubscribed = errors.New("msg: already subscribed")

const inboxSize = 128

// PubSub fans published messages out to per-topic subscriber channels.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	dropped     int
}

// NewPublisher returns a PubSub that stamps messages with pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:         &sync.Mutex{},
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID is a getter for the publisher PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a buffered, read only channel for topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, ok := subs[pid]; ok {
		return nil, ErrSubscribed
	}
	ch := make(chan Msg, inboxSize)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe closes every channel held by pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			delete(subs, pid)
			close(ch)
		}
	}
}

// Publish delivers payload to every subscriber of topic. A subscriber whose
// inbox is full misses the message.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	m := New(p.pid, topic, payload)
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.subscribers[topic] {
		select {
		case ch <- m:
		default:
			p.dropped++
		}
	}
}

// Dropped returns the number of messages lost to full inboxes.
func (p *PubSub) Dropped() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.dropped
}

// Topics lists every topic a sink subscribes to.
var Topics = []Topic{Record, Point, Scenario}

// SubscribeAll subscribes pid to each topic and merges the channels into one
// inbox. The inbox is closed once pid is unsubscribed and every buffered
// message has been forwarded.
func SubscribeAll(p Publisher, pid uuid.UUID, topics ...Topic) (<-chan Msg, error) {
	chans := make([]<-chan Msg, 0, len(topics))
	for _, topic := range topics {
		ch, err := p.Subscribe(pid, topic)
		if err != nil {
			p.Unsubscribe(pid)
			return nil, err
		}
		chans = append(chans, ch)
	}
	return merge(chans...), nil
}

func merge(chans ...<-chan Msg) <-chan Msg {
	out := make(chan Msg, inboxSize)
	var wg sync.WaitGroup
	wg.Add(len(chans))
	for _, ch := range chans {
		go func(ch <-chan Msg) {
			defer wg.Done()
			for m := range ch {
				out <- m
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
