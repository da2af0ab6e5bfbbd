// Package fakesai is an in-memory sai.API used by tests and by the agent's
// dry-run mode. It enforces the same rules a real ASIC does: duplicate
// entries are rejected, OID references must resolve on create, and an
// object cannot be removed while another object refers to it.
package fakesai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/util"
)

// Op names a hardware API call, for fault injection and call counting.
type Op string

const (
	OpCreate Op = "create"
	OpRemove Op = "remove"
	OpGet    Op = "get"
	OpSet    Op = "set"
)

type fault struct {
	op  Op
	typ sai.ObjectType
}

// Switch is one simulated ASIC.
type Switch struct {
	mu       sync.Mutex
	switchID sai.OID
	vrID     sai.OID
	next     uint64
	objects  map[sai.Handle]sai.Attributes
	faults   map[fault][]error
	calls    map[Op]int
}

var _ sai.API = (*Switch)(nil)
var _ sai.Lister = (*Switch)(nil)

// New returns a switch holding only the switch object and its default
// virtual router.
func New() *Switch {
	s := &Switch{
		objects: map[sai.Handle]sai.Attributes{},
		faults:  map[fault][]error{},
		calls:   map[Op]int{},
	}
	s.switchID = sai.NewOID(sai.ObjectTypeSwitch, 0)
	s.vrID = s.allocate(sai.ObjectTypeVirtualRouter)
	s.objects[sai.Handle{Type: sai.ObjectTypeSwitch, ID: s.switchID.String()}] = sai.Attributes{
		sai.SwitchAttrDefaultVirtualRouterID: s.vrID.String(),
	}
	s.objects[sai.Handle{Type: sai.ObjectTypeVirtualRouter, ID: s.vrID.String()}] = sai.Attributes{}
	return s
}

// SwitchID returns the OID of the switch object.
func (s *Switch) SwitchID() sai.OID { return s.switchID }

// DefaultVirtualRouter returns the OID of the default virtual router.
func (s *Switch) DefaultVirtualRouter() sai.OID { return s.vrID }

func (s *Switch) allocate(t sai.ObjectType) sai.OID {
	s.next++
	return sai.NewOID(t, s.next)
}

// FailNext makes the next op on an object of type t fail with err. Errors
// queue up: calling FailNext twice fails the next two matching calls.
func (s *Switch) FailNext(op Op, t sai.ObjectType, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := fault{op, t}
	s.faults[k] = append(s.faults[k], err)
}

func (s *Switch) takeFault(op Op, t sai.ObjectType) error {
	s.calls[op]++
	k := fault{op, t}
	q := s.faults[k]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	if len(q) == 1 {
		delete(s.faults, k)
	} else {
		s.faults[k] = q[1:]
	}
	return err
}

// Calls returns how many times op was invoked, including failed calls.
func (s *Switch) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Create implements sai.API.
func (s *Switch) Create(ctx context.Context, key sai.Key, attrs sai.Attributes) (sai.Handle, error) {
	if err := ctx.Err(); err != nil {
		return sai.Handle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := key.ObjectType()
	if err := s.takeFault(OpCreate, t); err != nil {
		return sai.Handle{}, err
	}

	var h sai.Handle
	if ser := key.Serialize(); ser != "" {
		h = sai.Handle{Type: t, ID: ser}
		if _, ok := s.objects[h]; ok {
			return sai.Handle{}, fmt.Errorf("%w: %s", sai.ErrObjectExists, h)
		}
		if err := s.checkRefs(keyRefs(ser)); err != nil {
			return sai.Handle{}, err
		}
	}
	if err := s.checkRefs(attrRefs(attrs)); err != nil {
		return sai.Handle{}, err
	}
	if h.IsZero() {
		h = sai.Handle{Type: t, ID: s.allocate(t).String()}
	}
	s.objects[h] = attrs.Clone()
	util.WithBackend("fake").WithField("handle", h.String()).Debug("created")
	return h, nil
}

// Remove implements sai.API.
func (s *Switch) Remove(ctx context.Context, h sai.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpRemove, h.Type); err != nil {
		return err
	}
	if _, ok := s.objects[h]; !ok {
		return fmt.Errorf("%w: %s", sai.ErrUnknownHandle, h)
	}
	if h.Type == sai.ObjectTypeSwitch {
		return fmt.Errorf("%w: switch object cannot be removed", sai.ErrObjectInUse)
	}
	if !h.Type.IsEntry() {
		if user, ok := s.referrer(h.ID); ok {
			return fmt.Errorf("%w: %s referenced by %s", sai.ErrObjectInUse, h, user)
		}
	}
	delete(s.objects, h)
	util.WithBackend("fake").WithField("handle", h.String()).Debug("removed")
	return nil
}

// GetAttribute implements sai.API.
func (s *Switch) GetAttribute(ctx context.Context, h sai.Handle, attr string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpGet, h.Type); err != nil {
		return "", err
	}
	attrs, ok := s.objects[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", sai.ErrUnknownHandle, h)
	}
	v, ok := attrs[attr]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", sai.ErrUnknownAttribute, attr, h)
	}
	return v, nil
}

// SetAttribute implements sai.API.
func (s *Switch) SetAttribute(ctx context.Context, h sai.Handle, attr, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(OpSet, h.Type); err != nil {
		return err
	}
	attrs, ok := s.objects[h]
	if !ok {
		return fmt.Errorf("%w: %s", sai.ErrUnknownHandle, h)
	}
	if strings.HasPrefix(value, "oid:") {
		if err := s.checkRefs([]string{value}); err != nil {
			return err
		}
	}
	attrs[attr] = value
	return nil
}

// Objects implements sai.Lister. Handles are returned sorted by ID.
func (s *Switch) Objects(ctx context.Context, t sai.ObjectType) ([]sai.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []sai.Handle
	for h := range s.objects {
		if h.Type == t {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of programmed objects of type t.
func (s *Switch) Count(t sai.ObjectType) int {
	hs, _ := s.Objects(context.Background(), t)
	return len(hs)
}

// Attributes returns a copy of the attributes of h.
func (s *Switch) Attributes(h sai.Handle) (sai.Attributes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.objects[h]
	if !ok {
		return nil, false
	}
	return attrs.Clone(), true
}

func (s *Switch) exists(oid string) bool {
	o, err := sai.ParseOID(oid)
	if err != nil {
		return false
	}
	if o == sai.NullOID {
		return true
	}
	_, ok := s.objects[sai.Handle{Type: o.ObjectType(), ID: oid}]
	return ok
}

func (s *Switch) checkRefs(refs []string) error {
	for _, r := range refs {
		if !s.exists(r) {
			return fmt.Errorf("%w: %s", sai.ErrInvalidObject, r)
		}
	}
	return nil
}

// referrer finds an object whose key or attributes name oid.
func (s *Switch) referrer(oid string) (sai.Handle, bool) {
	for h, attrs := range s.objects {
		if h.ID == oid {
			continue
		}
		if h.Type.IsEntry() {
			for _, r := range keyRefs(h.ID) {
				if r == oid {
					return h, true
				}
			}
		}
		for _, v := range attrs {
			if v == oid {
				return h, true
			}
		}
	}
	return sai.Handle{}, false
}

func attrRefs(attrs sai.Attributes) []string {
	var refs []string
	for _, v := range attrs {
		if strings.HasPrefix(v, "oid:") {
			refs = append(refs, v)
		}
	}
	return refs
}

func keyRefs(serialized string) []string {
	var fields map[string]string
	if err := json.Unmarshal([]byte(serialized), &fields); err != nil {
		return nil
	}
	var refs []string
	for _, v := range fields {
		if strings.HasPrefix(v, "oid:") {
			refs = append(refs, v)
		}
	}
	return refs
}
