package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/pit-signaling/internal/metrics"
	"github.com/mossy-p/pit-signaling/internal/models"
)

// ErrPitNotFound is returned by Lookup when the directory has no such pit.
var ErrPitNotFound = errors.New("pit not found in directory")

type opKind int

const (
	opPitCreated opKind = iota
	opPitDestroyed
	opMemberJoined
	opMemberLeft
)

type op struct {
	kind   opKind
	pitID  string
	meta   models.PitMetadata
	member models.PitMember
}

// Directory mirrors pit metadata and membership into redis for tools that
// live outside the relay process. It implements session.Observer: calls only
// enqueue, and a single Run goroutine applies writes in order. The in-memory
// session state stays authoritative; a lost write is logged and dropped.
//
// Key layout:
//
//	pit:<id>        JSON models.PitMetadata without members
//	pit:<id>:peers  set of peer ids
//	pit:<id>:names  hash peer id -> display name
type Directory struct {
	rdb *redis.Client
	ttl time.Duration
	ops chan op
}

func NewDirectory(rdb *redis.Client, ttl time.Duration, buffer int) *Directory {
	return &Directory{
		rdb: rdb,
		ttl: ttl,
		ops: make(chan op, buffer),
	}
}

func pitKey(id string) string   { return "pit:" + id }
func peersKey(id string) string { return "pit:" + id + ":peers" }
func namesKey(id string) string { return "pit:" + id + ":names" }

func (d *Directory) PitCreated(meta models.PitMetadata) {
	d.enqueue(op{kind: opPitCreated, pitID: meta.ID, meta: meta})
}

func (d *Directory) PitDestroyed(pitID string) {
	d.enqueue(op{kind: opPitDestroyed, pitID: pitID})
}

func (d *Directory) MemberJoined(pitID string, member models.PitMember) {
	d.enqueue(op{kind: opMemberJoined, pitID: pitID, member: member})
}

func (d *Directory) MemberLeft(pitID, peerID string) {
	d.enqueue(op{kind: opMemberLeft, pitID: pitID, member: models.PitMember{PeerID: peerID}})
}

func (d *Directory) enqueue(o op) {
	select {
	case d.ops <- o:
	default:
		metrics.DirectoryOps.WithLabelValues("dropped").Inc()
		log.Warn().Str("pit_id", o.pitID).Msg("Directory queue full, dropping update")
	}
}

// Run applies queued updates until ctx is cancelled.
func (d *Directory) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-d.ops:
			if err := d.apply(ctx, o); err != nil {
				metrics.DirectoryOps.WithLabelValues("error").Inc()
				log.Error().Err(err).Str("pit_id", o.pitID).Msg("Failed to update pit directory")
				continue
			}
			metrics.DirectoryOps.WithLabelValues("ok").Inc()
		}
	}
}

func (d *Directory) apply(ctx context.Context, o op) error {
	pipe := d.rdb.TxPipeline()

	switch o.kind {
	case opPitCreated:
		meta := o.meta
		meta.Members = nil
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal pit: %w", err)
		}
		pipe.Set(ctx, pitKey(o.pitID), data, d.ttl)
	case opMemberJoined:
		pipe.SAdd(ctx, peersKey(o.pitID), o.member.PeerID)
		pipe.HSet(ctx, namesKey(o.pitID), o.member.PeerID, o.member.DisplayName)
		pipe.Expire(ctx, pitKey(o.pitID), d.ttl)
		pipe.Expire(ctx, peersKey(o.pitID), d.ttl)
		pipe.Expire(ctx, namesKey(o.pitID), d.ttl)
	case opMemberLeft:
		pipe.SRem(ctx, peersKey(o.pitID), o.member.PeerID)
		pipe.HDel(ctx, namesKey(o.pitID), o.member.PeerID)
	case opPitDestroyed:
		pipe.Del(ctx, pitKey(o.pitID), peersKey(o.pitID), namesKey(o.pitID))
	default:
		return fmt.Errorf("unknown directory op %d", o.kind)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

// Lookup reads a pit back out of the directory.
func (d *Directory) Lookup(ctx context.Context, pitID string) (models.PitMetadata, error) {
	var meta models.PitMetadata

	data, err := d.rdb.Get(ctx, pitKey(pitID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return meta, ErrPitNotFound
	}
	if err != nil {
		return meta, fmt.Errorf("get pit: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse pit data: %w", err)
	}

	names, err := d.rdb.HGetAll(ctx, namesKey(pitID)).Result()
	if err != nil {
		return meta, fmt.Errorf("get members: %w", err)
	}
	peers, err := d.rdb.SMembers(ctx, peersKey(pitID)).Result()
	if err != nil {
		return meta, fmt.Errorf("get members: %w", err)
	}
	meta.Members = make([]models.PitMember, 0, len(peers))
	for _, id := range peers {
		meta.Members = append(meta.Members, models.PitMember{PeerID: id, DisplayName: names[id]})
	}
	return meta, nil
}
