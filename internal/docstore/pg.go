package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/livescript/livescript/internal/database"
)

// PG is the Postgres-backed document store. Live subscriptions are fed by
// the change Listener; without a running listener subscribers only receive
// their initial snapshot.
type PG struct {
	db  database.DBTX
	hub *hub
	seq atomic.Uint64
}

func NewPG(db database.DBTX) *PG {
	return &PG{db: db, hub: newHub()}
}

func (p *PG) GetGroup(ctx context.Context, id string) (Group, error) {
	var name, presentationSyncID *string
	err := p.db.QueryRow(ctx,
		`SELECT name, presentation_sync_id FROM groups WHERE id = $1`, id,
	).Scan(&name, &presentationSyncID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("get group %s: %w", id, err)
	}
	return parseGroup(id, name, presentationSyncID), nil
}

func (p *PG) GetPresentation(ctx context.Context, id string) (Presentation, error) {
	var title, syncID, groupID *string
	err := p.db.QueryRow(ctx,
		`SELECT title, sync_id, group_id FROM presentations WHERE id = $1`, id,
	).Scan(&title, &syncID, &groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Presentation{}, ErrNotFound
	}
	if err != nil {
		return Presentation{}, fmt.Errorf("get presentation %s: %w", id, err)
	}
	return parsePresentation(id, title, syncID, groupID), nil
}

func (p *PG) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, name, presentation_sync_id FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var id string
		var name, presentationSyncID *string
		if err := rows.Scan(&id, &name, &presentationSyncID); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, parseGroup(id, name, presentationSyncID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (p *PG) ListGroupPresentations(ctx context.Context, groupID string) ([]Presentation, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, title, sync_id, group_id FROM presentations
		 WHERE group_id = $1
		 ORDER BY title, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list presentations for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var presentations []Presentation
	for rows.Next() {
		var id string
		var title, syncID, group *string
		if err := rows.Scan(&id, &title, &syncID, &group); err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		presentations = append(presentations, parsePresentation(id, title, syncID, group))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presentations: %w", err)
	}
	return presentations, nil
}

func (p *PG) ListTranscripts(ctx context.Context, presentationID string) ([]Transcript, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, order_index, transcript, script, voice_path FROM transcripts
		 WHERE presentation_id = $1
		 ORDER BY order_index, id`, presentationID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts for %s: %w", presentationID, err)
	}
	defer rows.Close()

	var transcripts []Transcript
	for rows.Next() {
		var id string
		var order *int32
		var transcript, script, voicePath *string
		if err := rows.Scan(&id, &order, &transcript, &script, &voicePath); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		transcripts = append(transcripts, parseTranscript(id, order, transcript, script, voicePath))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}
	return transcripts, nil
}

func (p *PG) SetSyncID(ctx context.Context, presentationID, transcriptID string) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE presentations SET sync_id = $2, updated_at = now() WHERE id = $1`,
		presentationID, transcriptID)
	if err != nil {
		return fmt.Errorf("set sync id on %s: %w", presentationID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PG) SetPresentationSyncID(ctx context.Context, groupID, presentationID string) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE groups SET presentation_sync_id = $2, updated_at = now() WHERE id = $1`,
		groupID, presentationID)
	if err != nil {
		return fmt.Errorf("set presentation sync id on %s: %w", groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PG) PutGroup(ctx context.Context, g Group) error {
	if _, err := p.db.Exec(ctx,
		`INSERT INTO groups (id, name, presentation_sync_id) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
		   presentation_sync_id = EXCLUDED.presentation_sync_id, updated_at = now()`,
		g.ID, nullable(g.Name), nullable(g.PresentationSyncID),
	); err != nil {
		return fmt.Errorf("put group %s: %w", g.ID, err)
	}
	return nil
}

func (p *PG) PutPresentation(ctx context.Context, pr Presentation) error {
	if _, err := p.db.Exec(ctx,
		`INSERT INTO presentations (id, title, sync_id, group_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title,
		   sync_id = EXCLUDED.sync_id, group_id = EXCLUDED.group_id, updated_at = now()`,
		pr.ID, nullable(pr.Title), nullable(pr.SyncID), nullable(pr.Group),
	); err != nil {
		return fmt.Errorf("put presentation %s: %w", pr.ID, err)
	}
	return nil
}

func (p *PG) PutTranscript(ctx context.Context, presentationID string, t Transcript) error {
	if _, err := p.db.Exec(ctx,
		`INSERT INTO transcripts (id, presentation_id, order_index, transcript, script, voice_path)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET order_index = EXCLUDED.order_index,
		   transcript = EXCLUDED.transcript, script = EXCLUDED.script, voice_path = EXCLUDED.voice_path`,
		t.ID, presentationID, int32(t.Order), nullable(t.Transcript), nullable(t.Script), nullable(t.VoicePath),
	); err != nil {
		return fmt.Errorf("put transcript %s: %w", t.ID, err)
	}
	return nil
}

func (p *PG) SubscribeGroup(ctx context.Context, id string, fn func(Group)) (Subscription, error) {
	return p.subscribe(ctx, docKey{CollectionGroups, id}, func(doc any) { fn(doc.(Group)) })
}

func (p *PG) SubscribePresentation(ctx context.Context, id string, fn func(Presentation)) (Subscription, error) {
	return p.subscribe(ctx, docKey{CollectionPresentation, id}, func(doc any) { fn(doc.(Presentation)) })
}

func (p *PG) subscribe(ctx context.Context, key docKey, fn func(doc any)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := p.hub.add(key, fn)
	go func() {
		seq := p.seq.Add(1)
		s.deliver(seq, p.load(ctx, key))
	}()
	return s, nil
}

// load reads a document for delivery. Errors and missing rows yield the
// zero document with its ID set: subscribers show "waiting", never an error.
func (p *PG) load(ctx context.Context, key docKey) any {
	switch key.collection {
	case CollectionGroups:
		g, err := p.GetGroup(ctx, key.id)
		if err != nil {
			logLoadError(key, err)
			return Group{ID: key.id}
		}
		return g
	default:
		pr, err := p.GetPresentation(ctx, key.id)
		if err != nil {
			logLoadError(key, err)
			return Presentation{ID: key.id}
		}
		return pr
	}
}

func logLoadError(key docKey, err error) {
	if errors.Is(err, ErrNotFound) {
		slog.Warn("docstore: subscribed document missing", "collection", key.collection, "id", key.id)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	slog.Error("docstore: failed to load document", "collection", key.collection, "id", key.id, "error", err)
}

// refresh re-reads a changed document and fans it out to its subscribers.
func (p *PG) refresh(ctx context.Context, key docKey) {
	if len(p.hub.subscribers(key)) == 0 {
		return
	}
	seq := p.seq.Add(1)
	p.hub.publish(key, seq, p.load(ctx, key))
}

// refreshAll re-reads every subscribed document, used after the listener
// reconnects and may have missed notifications.
func (p *PG) refreshAll(ctx context.Context) {
	for _, key := range p.hub.keys() {
		p.refresh(ctx, key)
	}
}

// Subscribers reports the number of open subscriptions.
func (p *PG) Subscribers() int {
	return p.hub.count()
}
