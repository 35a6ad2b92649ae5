package registry

import (
	"errors"
	"testing"
	"time"

	"subnetgov/crypto"
	"subnetgov/native/common"
)

func ids(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, string(rune('a'+i))+"-validator")
	}
	return out
}

func TestInitializeSetDefaultThreshold(t *testing.T) {
	reg := New(nil)
	set, err := reg.InitializeSet("subnet-1", ids(7), crypto.AlgorithmEd25519, 0)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if set.Scheme.Threshold != 5 {
		t.Fatalf("threshold = %d, want 5", set.Scheme.Threshold)
	}
	if set.Scheme.Total != 7 || set.Epoch != 1 {
		t.Fatalf("total = %d epoch = %d", set.Scheme.Total, set.Epoch)
	}
	for _, v := range set.Validators {
		if len(v.PublicKey) == 0 {
			t.Fatalf("validator %s has no provisioned key", v.ID)
		}
		if v.Reputation != 100 || v.Status != StatusActive {
			t.Fatalf("validator %s reputation=%d status=%s", v.ID, v.Reputation, v.Status)
		}
	}
}

func TestInitializeSetRejectsBadInput(t *testing.T) {
	reg := New(nil)
	if _, err := reg.InitializeSet("subnet-1", ids(4), crypto.AlgorithmEd25519, 5); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("threshold above n: err = %v", err)
	}
	if _, err := reg.InitializeSet("subnet-1", []string{"a", "a"}, crypto.AlgorithmEd25519, 0); !errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("duplicate ids: err = %v", err)
	}
	if _, err := reg.InitializeSet("subnet-1", ids(3), "rsa", 0); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("unknown algorithm: err = %v", err)
	}
	if _, err := reg.InitializeSet("subnet-1", ids(3), crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := reg.InitializeSet("subnet-1", ids(3), crypto.AlgorithmEd25519, 0); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("re-initialize: err = %v", err)
	}
}

func TestAddValidatorRequiresActivePrimary(t *testing.T) {
	reg := New(nil)
	members := ids(4)
	if _, err := reg.InitializeSet("subnet-1", members, crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := reg.AddValidator("subnet-1", &Validator{ID: "new-1"}, "stranger"); !errors.Is(err, common.ErrPermission) {
		t.Fatalf("outsider add: err = %v", err)
	}
	if err := reg.AddValidator("subnet-1", &Validator{ID: "new-1"}, members[0]); err != nil {
		t.Fatalf("member add: %v", err)
	}
	if err := reg.AddValidator("subnet-1", &Validator{ID: "new-1"}, members[0]); !errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("duplicate add: err = %v", err)
	}
	set, _ := reg.Set("subnet-1")
	if set.Scheme.Total != 5 {
		t.Fatalf("total = %d, want 5", set.Scheme.Total)
	}

	// A compromised requester loses its administrative rights.
	if _, _, err := reg.Penalize(members[0], 90); err != nil {
		t.Fatalf("penalize: %v", err)
	}
	if err := reg.AddValidator("subnet-1", &Validator{ID: "new-2"}, members[0]); !errors.Is(err, common.ErrPermission) {
		t.Fatalf("compromised add: err = %v", err)
	}
}

func TestGovernanceRemoveRespectsMinimum(t *testing.T) {
	reg := New(nil)
	reg.SetRotationPolicy(RotationPolicy{MinValidators: 3, MaxValidators: 10})
	members := ids(3)
	if _, err := reg.InitializeSet("subnet-1", members, crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := reg.GovernanceRemove("subnet-1", members[0]); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("remove below minimum: err = %v", err)
	}
	if err := reg.GovernanceAdd("subnet-1", &Validator{ID: "extra"}); err != nil {
		t.Fatalf("governance add: %v", err)
	}
	if err := reg.GovernanceRemove("subnet-1", members[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, ok := reg.Lookup(members[0]); ok {
		t.Fatalf("removed validator still resolvable")
	}
}

func TestRotateSupersedesSet(t *testing.T) {
	reg := New(nil)
	members := ids(4)
	if _, err := reg.InitializeSet("subnet-1", members, crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := reg.Rotate("subnet-1", ids(4), "stranger"); !errors.Is(err, common.ErrPermission) {
		t.Fatalf("outsider rotate: err = %v", err)
	}

	// Mark one member compromised; rotating it back in restores active status.
	if _, status, err := reg.Penalize(members[1], 95); err != nil || status != StatusCompromised {
		t.Fatalf("penalize: status=%s err=%v", status, err)
	}

	next, err := reg.Rotate("subnet-1", []string{members[0], members[1], "fresh-1"}, members[0])
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.Epoch != 2 {
		t.Fatalf("epoch = %d, want 2", next.Epoch)
	}
	if next.Scheme.Threshold != DefaultThreshold(3) {
		t.Fatalf("threshold = %d, want %d", next.Scheme.Threshold, DefaultThreshold(3))
	}
	carried, ok := next.Validator(members[1])
	if !ok || carried.Status != StatusActive {
		t.Fatalf("carried validator not reactivated: %+v", carried)
	}

	history := reg.History("subnet-1")
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].ActiveUntil.IsZero() {
		t.Fatalf("superseded set missing ActiveUntil")
	}
	if _, _, ok := reg.Lookup(members[2]); ok {
		t.Fatalf("dropped validator still indexed")
	}
}

func TestPenalizeClampsAndCompromises(t *testing.T) {
	reg := New(nil)
	members := ids(3)
	if _, err := reg.InitializeSet("subnet-1", members, crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	rep, status, err := reg.Penalize(members[0], 85)
	if err != nil || rep != 15 || status != StatusCompromised {
		t.Fatalf("penalize: rep=%d status=%s err=%v", rep, status, err)
	}
	rep, _, err = reg.Penalize(members[0], 50)
	if err != nil || rep != 0 {
		t.Fatalf("penalize clamp: rep=%d err=%v", rep, err)
	}
	v, _ := reg.Validator("subnet-1", members[0])
	if v.SlashingCount != 2 {
		t.Fatalf("slashing count = %d, want 2", v.SlashingCount)
	}
}

func TestMaintainDecaysAndRewards(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg := New(nil)
	reg.SetNowFunc(func() time.Time { return base })
	members := ids(3)
	if _, err := reg.InitializeSet("subnet-1", members, crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Drop one member's reputation so the participation bonus is observable.
	if _, _, err := reg.Penalize(members[0], 30); err != nil {
		t.Fatalf("penalize: %v", err)
	}

	// Within the grace window every active member earns the bonus.
	reg.Maintain(base.Add(time.Hour))
	v, _ := reg.Validator("subnet-1", members[0])
	if v.Reputation != 71 {
		t.Fatalf("reputation after bonus = %d, want 71", v.Reputation)
	}
	v, _ = reg.Validator("subnet-1", members[1])
	if v.Reputation != 100 {
		t.Fatalf("bonus must cap at 100, got %d", v.Reputation)
	}

	// Past the grace window reputation decays.
	reg.Maintain(base.Add(4 * 24 * time.Hour))
	v, _ = reg.Validator("subnet-1", members[0])
	if v.Reputation != 69 {
		t.Fatalf("reputation after decay = %d, want 69", v.Reputation)
	}

	// A week of silence flips members inactive.
	reg.Maintain(base.Add(8 * 24 * time.Hour))
	v, _ = reg.Validator("subnet-1", members[1])
	if v.Status != StatusInactive {
		t.Fatalf("status = %s, want inactive", v.Status)
	}
}

func TestSigningKeyAvailableForProvisionedValidators(t *testing.T) {
	reg := New(nil)
	if _, err := reg.InitializeSet("subnet-1", ids(3), crypto.AlgorithmEd25519, 0); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	key, ok := reg.SigningKey("subnet-1", "a-validator")
	if !ok || len(key) == 0 {
		t.Fatalf("expected provisioned signing key")
	}
	if _, ok := reg.SigningKey("subnet-1", "missing"); ok {
		t.Fatalf("unexpected key for unknown validator")
	}
}
