package datainfo

import (
	"sort"

	"github.com/google/uuid"

	"taskrt/internal/taskmodel"
)

// Access is the resolved outcome of a parameter access: the producers the
// analyzer must wire predecessor edges from, plus the (possibly new)
// DataRef — non-file refs are assigned an id on first observation.
type Access struct {
	Ref       taskmodel.DataRef
	Producers []int64
	Version   int

	// HasRead and ReadVersion record the version this access registered
	// itself as a reader of (IN/INOUT only — group accesses never call
	// addReader, see CloseGroup), so the analyzer can release the
	// registration again once the task finishes.
	HasRead     bool
	ReadVersion int
}

// Provider is the DataInfoProvider: the versioned registry of
// DataInstances, consulted only by the TaskAnalyser.
type Provider struct {
	byKey map[string]*DataInstance
}

// New returns an empty Provider.
func New() *Provider {
	return &Provider{byKey: make(map[string]*DataInstance)}
}

// resolve finds or creates the DataInstance for ref, assigning a uuid when
// ref names neither a file path nor an existing opaque id.
func (p *Provider) resolve(ref taskmodel.DataRef) (*DataInstance, taskmodel.DataRef) {
	if ref.Path == "" && ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	key := ref.Key()
	d, ok := p.byKey[key]
	if !ok {
		d = newDataInstance(ref)
		p.byKey[key] = d
	}
	return d, ref
}

// Lookup returns the DataInstance registered for ref without creating one.
func (p *Provider) Lookup(ref taskmodel.DataRef) (*DataInstance, bool) {
	d, ok := p.byKey[ref.Key()]
	return d, ok
}

// Access resolves ref's DataInstance and records the intended access by
// task, per the direction table in §4.2:
//
//	IN          reads only: edge from current producer(s); task recorded as
//	            a reader of the current version.
//	OUT/INOUT   edge from current producer(s) (WAW/RAW); version bumps
//	            immediately and task becomes the sole writer.
//	CONCURRENT/ edge from the producers in effect when the group opened
//	COMMUTATIVE (the "anchor"), never between siblings; the version bump
//	            and writer update are deferred to CloseGroup.
//
// Any open group on ref is auto-closed before a non-group access is
// recorded — a later exclusive access always observes the group as
// finished, never mid-flight.
func (p *Provider) Access(ref taskmodel.DataRef, dir taskmodel.Direction, task int64) Access {
	d, resolvedRef := p.resolve(ref)

	if !dir.IsGroup() && d.group != nil {
		p.CloseGroup(d)
	}

	if dir.IsGroup() {
		if d.group == nil {
			d.group = &group{kind: dir}
		}
		anchor := d.Writers()
		d.group.members = append(d.group.members, task)
		return Access{Ref: resolvedRef, Producers: anchor, Version: d.Version}
	}

	producers := d.Writers()

	var hasRead bool
	var readVersion int
	if dir.Reads() {
		readVersion = d.Version
		p.addReader(d, readVersion, task)
		hasRead = true
	}

	if dir.Writes() {
		p.newVersion(d, task)
	}

	return Access{Ref: resolvedRef, Producers: producers, Version: d.Version, HasRead: hasRead, ReadVersion: readVersion}
}

// addReader registers task as a reader of version. main_access reads
// register under the synthetic task id 0 and are never released via
// ReleaseReaders (there is no TASK_ENDED for the main thread), so a version
// read only by main_access never becomes collectable. Harmless today since
// nothing consumes Collectable, but worth keeping in mind if that changes.
func (p *Provider) addReader(d *DataInstance, version int, task int64) {
	d.readerSet(version)[task] = struct{}{}
}

// newVersion bumps d's version and sets task as the sole writer (I5: the
// new version number is always the prior one plus one).
func (p *Provider) newVersion(d *DataInstance, task int64) {
	d.Version++
	d.writers = []int64{task}
}

// CloseGroup finalizes an open CONCURRENT/COMMUTATIVE group: the version
// bumps once, and the writer set becomes every member collected while the
// group was open, in submission order.
func (p *Provider) CloseGroup(d *DataInstance) {
	if d.group == nil {
		return
	}
	members := make([]int64, len(d.group.members))
	copy(members, d.group.members)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	d.Version++
	d.writers = members
	d.group = nil
}

// ReleaseReaders removes task from version's reader set. If the set becomes
// empty and version is no longer current, the version is marked
// collectable.
func (p *Provider) ReleaseReaders(d *DataInstance, version int, task int64) {
	set, ok := d.readers[version]
	if !ok {
		return
	}
	delete(set, task)
	if len(set) == 0 {
		delete(d.readers, version)
		if version < d.Version {
			d.collectableVersions[version] = struct{}{}
		}
	}
}
