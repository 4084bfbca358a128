package notify

import (
	"context"
	"fmt"
	"sync"
)

type Sent struct {
	To     Recipient
	Msg    Message
	Handle Handle
	Edit   bool
}

// Recorder keeps every message in memory. Fail makes deliveries to the listed
// user ids return a DeliveryError.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail map[string]bool
}

func (r *Recorder) Send(_ context.Context, to Recipient, msg Message) (Handle, error) {
	return r.record(to, msg, "", false)
}

func (r *Recorder) EditOrAppend(_ context.Context, to Recipient, h Handle, msg Message) (Handle, error) {
	return r.record(to, msg, h, h != "")
}

func (r *Recorder) record(to Recipient, msg Message, h Handle, edit bool) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail[to.UserID] {
		return "", &DeliveryError{Recipient: to.UserID, Err: fmt.Errorf("recipient unreachable")}
	}
	if !edit {
		h = Handle(fmt.Sprintf("msg-%d", len(r.sent)+1))
	}
	r.sent = append(r.sent, Sent{To: to, Msg: msg, Handle: h, Edit: edit})
	return h, nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// To returns the messages delivered to userID.
func (r *Recorder) To(userID string) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.To.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}
