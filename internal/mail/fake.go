package mail

import "sync"

// FakeMailer records sent messages for tests.
type FakeMailer struct {
	mu   sync.Mutex
	Sent []FakeMessage
	Err  error
}

type FakeMessage struct {
	To      string
	Subject string
	Body    string
}

func (f *FakeMailer) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, FakeMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (f *FakeMailer) Last() (FakeMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return FakeMessage{}, false
	}
	return f.Sent[len(f.Sent)-1], true
}
