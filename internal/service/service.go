package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"smsportal/internal/directory"
	"smsportal/internal/gateway"
	"smsportal/internal/models"
	"smsportal/internal/phone"
)

type MessageRepository interface {
	InsertMessage(ctx context.Context, m models.Message) (bool, error)
	InsertMessages(ctx context.Context, msgs []models.Message) (int, error)
	HasExternalID(ctx context.Context, externalID string) (bool, error)
	FindLatestSentTo(ctx context.Context, phone string) (*models.Message, error)
	ListForUser(ctx context.Context, user string) ([]models.Message, error)
	ListConversation(ctx context.Context, user, phone string) ([]models.Message, error)
	ListRecipients(ctx context.Context, user string) ([]string, error)
	SaveContact(ctx context.Context, c models.Contact) error
	ListContacts(ctx context.Context, owner string) ([]models.Contact, error)
	DeleteContact(ctx context.Context, id int) error
	CreateScheduled(ctx context.Context, m models.ScheduledMessage) error
	ListScheduled(ctx context.Context, sender string) ([]models.ScheduledMessage, error)
	DueScheduled(ctx context.Context, now time.Time) ([]models.ScheduledMessage, error)
	MarkScheduledSent(ctx context.Context, id int) error
	CancelScheduled(ctx context.Context, id int, sender string) error
	MarkRead(ctx context.Context, department, recipient string, at time.Time) error
	UnreadCounts(ctx context.Context, user, department string) (map[string]int, error)
}

type Gateway interface {
	SendSMS(ctx context.Context, recipient, body string) (string, error)
	FetchReceived(ctx context.Context) ([]gateway.RawMessage, error)
	FetchAll(ctx context.Context) ([]gateway.RawMessage, error)
}

// DedupCache answers "was this external identity ingested recently?"
// ahead of the store lookup. Failures degrade to the store check.
type DedupCache interface {
	Seen(ctx context.Context, externalID string) (bool, error)
	MarkSeen(ctx context.Context, externalID string, at time.Time) error
}

const maxBodyLength = 160

type MessageService struct {
	repo  MessageRepository
	gw    Gateway
	cache DedupCache
	dir   directory.Directory
	log   *zap.SugaredLogger
}

func NewMessageService(repo MessageRepository, gw Gateway, cache DedupCache, dir directory.Directory, log *zap.SugaredLogger) *MessageService {
	return &MessageService{repo: repo, gw: gw, cache: cache, dir: dir, log: log}
}

// SendMessage signs, transmits, and persists one outbound message.
// Gateway failures surface to the caller: an interactive send must not
// pretend to have worked.
func (s *MessageService) SendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	recipient := phone.Normalize(msg.Recipient)
	if recipient == "" {
		return models.Message{}, fmt.Errorf("invalid recipient %q", msg.Recipient)
	}

	body := msg.Body
	if id, err := s.dir.Lookup(msg.Sender); err == nil {
		body = body + "\n- " + id.DisplayName + ", " + id.Department
	}
	if len(body) > maxBodyLength {
		s.log.Warnw("message body exceeds limit, truncating", "sender", msg.Sender, "limit", maxBodyLength)
		body = body[:maxBodyLength]
	}

	externalID, err := s.gw.SendSMS(ctx, recipient, body)
	if err != nil {
		return models.Message{}, fmt.Errorf("gateway send failed: %w", err)
	}

	out := models.Message{
		Sender:    msg.Sender,
		Recipient: recipient,
		Body:      body,
		Timestamp: time.Now().UTC(),
		Direction: models.DirectionSent,
	}
	if externalID != "" {
		out.ExternalID = &externalID
	}
	inserted, err := s.repo.InsertMessage(ctx, out)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to persist sent message: %w", err)
	}
	if !inserted {
		s.log.Warnw("sent message already persisted", "externalId", externalID)
	}
	if externalID != "" {
		if err := s.cache.MarkSeen(ctx, externalID, out.Timestamp); err != nil {
			s.log.Debugw("failed to cache sent external id", "externalId", externalID, "err", err)
		}
	}
	return out, nil
}

// SyncInbox runs one reconciliation cycle: fetch whatever the gateway
// currently reports, keep only records that are new, attributable
// inbound messages, and store them in a single batch. Returns how many
// messages were newly stored. Fetch and parse failures mean "no
// messages this cycle", never a dead loop.
func (s *MessageService) SyncInbox(ctx context.Context) (int, error) {
	records, err := s.gw.FetchReceived(ctx)
	if err != nil {
		s.log.Warnw("received-only fetch failed, falling back to all messages", "err", err)
		all, fallbackErr := s.gw.FetchAll(ctx)
		if fallbackErr != nil {
			s.log.Warnw("fallback fetch failed, skipping cycle", "err", fallbackErr)
			return 0, nil
		}
		records = nil
		for _, rec := range all {
			if rec.Inbound() {
				records = append(records, rec)
			}
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	var batch []models.Message
	seenThisCycle := make(map[string]bool)
	for _, rec := range records {
		msg, ok := s.reconcile(ctx, rec, seenThisCycle)
		if !ok {
			continue
		}
		seenThisCycle[*msg.ExternalID] = true
		batch = append(batch, msg)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	inserted, err := s.repo.InsertMessages(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to store inbox batch: %w", err)
	}
	for _, m := range batch {
		if err := s.cache.MarkSeen(ctx, *m.ExternalID, m.Timestamp); err != nil {
			s.log.Debugw("failed to cache external id", "externalId", *m.ExternalID, "err", err)
		}
	}
	s.log.Infow("inbox sync complete", "fetched", len(records), "stored", inserted)
	return inserted, nil
}

// reconcile turns one raw gateway record into a persistable message,
// or reports false when the record is unattributable or already known.
func (s *MessageService) reconcile(ctx context.Context, rec gateway.RawMessage, seenThisCycle map[string]bool) (models.Message, bool) {
	sender := phone.Normalize(rec.Sender())
	recipient := phone.Normalize(rec.Recipient())
	if sender == "" || recipient == "" {
		s.log.Debugw("discarding record with no usable phone numbers",
			"from", rec.Sender(), "to", rec.Recipient())
		return models.Message{}, false
	}

	externalID := rec.ExternalID()
	if externalID == "" {
		externalID = messageIdentity(sender, recipient, rec.Body(), rec.Timestamp())
	}
	if seenThisCycle[externalID] {
		return models.Message{}, false
	}
	if known, err := s.cache.Seen(ctx, externalID); err != nil {
		s.log.Debugw("dedup cache unavailable, deferring to store", "err", err)
	} else if known {
		return models.Message{}, false
	}
	exists, err := s.repo.HasExternalID(ctx, externalID)
	if err != nil {
		s.log.Warnw("dedup lookup failed, skipping record until next cycle",
			"externalId", externalID, "err", err)
		return models.Message{}, false
	}
	if exists {
		return models.Message{}, false
	}

	// The gateway reports the device's own number as the recipient.
	// Whoever last texted this counterparty owns the conversation.
	if last, err := s.repo.FindLatestSentTo(ctx, sender); err != nil {
		s.log.Warnw("attribution lookup failed, skipping record until next cycle",
			"externalId", externalID, "err", err)
		return models.Message{}, false
	} else if last != nil {
		recipient = last.Sender
	}

	return models.Message{
		ExternalID: &externalID,
		Sender:     sender,
		Recipient:  recipient,
		Body:       rec.Body(),
		Timestamp:  parseTimestamp(rec.Timestamp()),
		Direction:  models.DirectionReceived,
	}, true
}

func (s *MessageService) GetMessages(ctx context.Context, user string) ([]models.Message, error) {
	return s.repo.ListForUser(ctx, user)
}

func (s *MessageService) GetConversation(ctx context.Context, user, rawPhone string) ([]models.Message, error) {
	p := phone.Normalize(rawPhone)
	if p == "" {
		return nil, fmt.Errorf("invalid phone %q", rawPhone)
	}
	return s.repo.ListConversation(ctx, user, p)
}

func (s *MessageService) GetRecipients(ctx context.Context, user string) ([]string, error) {
	return s.repo.ListRecipients(ctx, user)
}

func (s *MessageService) SaveContact(ctx context.Context, c models.Contact) error {
	p := phone.Normalize(c.PhoneNumber)
	if p == "" {
		return fmt.Errorf("invalid phone %q", c.PhoneNumber)
	}
	c.PhoneNumber = p
	return s.repo.SaveContact(ctx, c)
}

func (s *MessageService) GetContacts(ctx context.Context, owner string) ([]models.Contact, error) {
	return s.repo.ListContacts(ctx, owner)
}

func (s *MessageService) DeleteContact(ctx context.Context, id int) error {
	return s.repo.DeleteContact(ctx, id)
}

func (s *MessageService) ScheduleMessage(ctx context.Context, m models.ScheduledMessage) error {
	p := phone.Normalize(m.Recipient)
	if p == "" {
		return fmt.Errorf("invalid recipient %q", m.Recipient)
	}
	m.Recipient = p
	if m.SenderName == "" {
		if id, err := s.dir.Lookup(m.Sender); err == nil {
			m.SenderName = id.DisplayName
			m.SenderDepartment = id.Department
		}
	}
	return s.repo.CreateScheduled(ctx, m)
}

func (s *MessageService) GetScheduledMessages(ctx context.Context, sender string) ([]models.ScheduledMessage, error) {
	return s.repo.ListScheduled(ctx, sender)
}

func (s *MessageService) CancelScheduledMessage(ctx context.Context, id int, sender string) error {
	return s.repo.CancelScheduled(ctx, id, sender)
}

func (s *MessageService) MarkRead(ctx context.Context, department, rawPhone string) error {
	p := phone.Normalize(rawPhone)
	if p == "" {
		return fmt.Errorf("invalid phone %q", rawPhone)
	}
	return s.repo.MarkRead(ctx, department, p, time.Now().UTC())
}

func (s *MessageService) UnreadCounts(ctx context.Context, user, department string) (map[string]int, error) {
	return s.repo.UnreadCounts(ctx, user, department)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp is lenient: the identity hash uses the raw string, so
// a format the gateway invents tomorrow costs only timestamp fidelity,
// not dedup correctness.
func parseTimestamp(raw string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
