package monitor

import (
	stderrors "errors"
	"sync"

	"github.com/prowire/prowire/pkg/logger"
)

// ErrHandleNotFound is returned when deregistering a handle that was never
// registered (or was already deregistered). Callers treat it as benign.
var ErrHandleNotFound = stderrors.New("management handle not registered")

// ManagedObject exposes named numeric attributes for polling. The transport
// publishes one object per catalog group.
type ManagedObject interface {
	ObjectName() string
	Attribute(name string) float64
}

// Handle groups the managed objects created for one transport. It is the
// unit of registration and deregistration.
type Handle struct {
	objects []ManagedObject
}

// NewHandle creates a management handle over the given objects.
func NewHandle(objects ...ManagedObject) *Handle {
	return &Handle{objects: objects}
}

// ManagementRegistry is the platform facility management handles are
// registered with. Registered objects become resolvable by object name for
// attribute polling.
type ManagementRegistry struct {
	mu     sync.RWMutex
	roots  map[*Handle]string
	byName map[string]ManagedObject
}

func NewManagementRegistry() *ManagementRegistry {
	return &ManagementRegistry{
		roots:  make(map[*Handle]string),
		byName: make(map[string]ManagedObject),
	}
}

// RegisterAtRoot registers the handle under the given namespace, making its
// objects resolvable. Re-registering a handle overwrites its namespace.
func (r *ManagementRegistry) RegisterAtRoot(h *Handle, namespace string) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots[h] = namespace
	for _, obj := range h.objects {
		r.byName[obj.ObjectName()] = obj
	}
	logger.Log.Debug("Management: handle registered", "namespace", namespace, "objects", len(h.objects))
}

// Deregister removes the handle and its objects. Deregistering an unknown
// handle returns ErrHandleNotFound.
func (r *ManagementRegistry) Deregister(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		return ErrHandleNotFound
	}
	if _, ok := r.roots[h]; !ok {
		return ErrHandleNotFound
	}
	delete(r.roots, h)
	for _, obj := range h.objects {
		delete(r.byName, obj.ObjectName())
	}
	return nil
}

// Lookup resolves a managed object by name.
func (r *ManagementRegistry) Lookup(objectName string) (ManagedObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.byName[objectName]
	return obj, ok
}
