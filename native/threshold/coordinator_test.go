package threshold

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"subnetgov/crypto"
	"subnetgov/native/common"
	"subnetgov/native/registry"
	"subnetgov/native/slashing"
)

type fixture struct {
	registry *registry.Registry
	ledger   *slashing.Ledger
	coord    *Coordinator
	members  []string
	now      time.Time
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	members := make([]string, 0, n)
	for i := 0; i < n; i++ {
		members = append(members, string(rune('a'+i))+"-validator")
	}
	f := &fixture{
		members: members,
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.registry = registry.New(nil)
	f.registry.SetNowFunc(func() time.Time { return f.now })
	if _, err := f.registry.InitializeSet("subnet-1", members, crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize set: %v", err)
	}
	f.ledger = slashing.NewLedger(f.registry)
	f.coord = NewCoordinator(f.registry, f.ledger)
	f.coord.SetNowFunc(func() time.Time { return f.now })
	return f
}

func (f *fixture) sign(t *testing.T, validatorID string, message []byte) []byte {
	t.Helper()
	priv, ok := f.registry.SigningKey("subnet-1", validatorID)
	if !ok {
		t.Fatalf("no signing key for %s", validatorID)
	}
	scheme, err := crypto.ByAlgorithm(crypto.AlgorithmEd25519)
	if err != nil {
		t.Fatalf("scheme: %v", err)
	}
	digest := crypto.Digest(message)
	sig, err := scheme.Sign(priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func TestThresholdCompletion(t *testing.T) {
	f := newFixture(t, 5)
	message := []byte("rotate validator set")

	var terminal []*Request
	f.coord.Subscribe(func(req *Request) { terminal = append(terminal, req) })

	id, err := f.coord.Request("subnet-1", message, "rotation", nil, time.Hour)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req, _ := f.coord.Get(id)
	if req.Required != 4 {
		t.Fatalf("required = %d, want 4 for n=5", req.Required)
	}

	for i := 0; i < 4; i++ {
		accepted, err := f.coord.SubmitShare(id, f.members[i], f.sign(t, f.members[i], message))
		if err != nil || !accepted {
			t.Fatalf("share %d: accepted=%v err=%v", i, accepted, err)
		}
	}

	req, _ = f.coord.Get(id)
	if req.Status != StatusComplete {
		t.Fatalf("status = %s, want complete", req.Status)
	}
	shares, err := crypto.DecodeEnvelope(req.Aggregated)
	if err != nil || len(shares) != 4 {
		t.Fatalf("aggregated envelope: %d shares, err=%v", len(shares), err)
	}
	if len(terminal) != 1 || terminal[0].Status != StatusComplete {
		t.Fatalf("observer calls = %d", len(terminal))
	}

	// A share past completion is kept for the record without re-aggregation.
	aggregated := append([]byte(nil), req.Aggregated...)
	accepted, err := f.coord.SubmitShare(id, f.members[4], f.sign(t, f.members[4], message))
	if err != nil || !accepted {
		t.Fatalf("late share: accepted=%v err=%v", accepted, err)
	}
	req, _ = f.coord.Get(id)
	if req.Collected != 5 || req.Status != StatusComplete {
		t.Fatalf("collected=%d status=%s after late share", req.Collected, req.Status)
	}
	if !bytes.Equal(req.Aggregated, aggregated) {
		t.Fatalf("aggregation re-ran on late share")
	}
	if len(terminal) != 1 {
		t.Fatalf("late share must not re-notify, calls = %d", len(terminal))
	}
}

func TestDuplicateShareRejected(t *testing.T) {
	f := newFixture(t, 5)
	message := []byte("payout batch 42")
	id, err := f.coord.Request("subnet-1", message, "payout", nil, time.Hour)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	sig := f.sign(t, f.members[0], message)
	if _, err := f.coord.SubmitShare(id, f.members[0], sig); err != nil {
		t.Fatalf("first share: %v", err)
	}
	if _, err := f.coord.SubmitShare(id, f.members[0], sig); !errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("duplicate share: err = %v", err)
	}
	req, _ := f.coord.Get(id)
	if req.Collected != 1 {
		t.Fatalf("collected = %d, want 1", req.Collected)
	}
}

func TestInvalidShareSlashesWithoutAborting(t *testing.T) {
	f := newFixture(t, 5)
	message := []byte("policy update")
	id, err := f.coord.Request("subnet-1", message, "policy", nil, time.Hour)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	garbage := bytes.Repeat([]byte{0x42}, 64)
	if _, err := f.coord.SubmitShare(id, f.members[0], garbage); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("invalid share: err = %v", err)
	}

	history := f.ledger.History(f.members[0])
	if len(history) != 1 || history[0].Reason != slashing.ReasonMaliciousBehavior {
		t.Fatalf("slashing history = %+v", history)
	}
	req, _ := f.coord.Get(id)
	if req.Status != StatusCollecting || req.Collected != 0 {
		t.Fatalf("status=%s collected=%d after invalid share", req.Status, req.Collected)
	}

	// The offender may still submit a valid share afterwards.
	if _, err := f.coord.SubmitShare(id, f.members[0], f.sign(t, f.members[0], message)); err != nil {
		t.Fatalf("valid share after offense: %v", err)
	}
}

func TestCompromisedValidatorBarred(t *testing.T) {
	f := newFixture(t, 5)
	message := []byte("fund transfer")
	id, err := f.coord.Request("subnet-1", message, "transfer", nil, time.Hour)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, _, err := f.registry.Penalize(f.members[0], 90); err != nil {
		t.Fatalf("penalize: %v", err)
	}
	if _, err := f.coord.SubmitShare(id, f.members[0], f.sign(t, f.members[0], message)); !errors.Is(err, common.ErrPermission) {
		t.Fatalf("compromised share: err = %v", err)
	}
	if _, err := f.coord.SubmitShare(id, "stranger", f.sign(t, f.members[1], message)); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown validator: err = %v", err)
	}
}

func TestExpiry(t *testing.T) {
	f := newFixture(t, 5)
	message := []byte("slow operation")
	id, err := f.coord.Request("subnet-1", message, "slow", nil, time.Minute)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	f.now = f.now.Add(2 * time.Minute)
	if _, err := f.coord.SubmitShare(id, f.members[0], f.sign(t, f.members[0], message)); !errors.Is(err, common.ErrExpired) {
		t.Fatalf("late share: err = %v", err)
	}
	req, _ := f.coord.Get(id)
	if req.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", req.Status)
	}

	// The sweep transitions stale requests with zero foreground activity.
	id2, err := f.coord.Request("subnet-1", message, "slow", nil, time.Minute)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	f.now = f.now.Add(2 * time.Minute)
	if expired := f.coord.ExpireStale(f.now); expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	req, _ = f.coord.Get(id2)
	if req.Status != StatusExpired {
		t.Fatalf("swept status = %s, want expired", req.Status)
	}
	if _, err := f.coord.SubmitShare(id2, f.members[0], f.sign(t, f.members[0], message)); !errors.Is(err, common.ErrExpired) {
		t.Fatalf("share on expired request: err = %v", err)
	}
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, 5)
	if _, err := f.coord.Request("ghost-subnet", []byte("x"), "", nil, time.Hour); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown subnet: err = %v", err)
	}
	if _, err := f.coord.Request("subnet-1", nil, "", nil, time.Hour); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("empty message: err = %v", err)
	}
	if _, err := f.coord.RequestRequiring("subnet-1", []byte("x"), "", nil, time.Hour, 6); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("required above n: err = %v", err)
	}
}
