package scheduler

import "fmt"

// ResourceKind is a conflict dimension.
type ResourceKind uint8

const (
	ResourceRoom ResourceKind = iota + 1
	ResourceTeacher
	ResourceLink
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceRoom:
		return "ROOM"
	case ResourceTeacher:
		return "TEACHER"
	case ResourceLink:
		return "LINK"
	default:
		return "UNKNOWN"
	}
}

// Resource identifies something that can be busy in a (day, slot) cell.
type Resource struct {
	Kind ResourceKind
	ID   string
}

// RoomResource wraps a room id.
func RoomResource(id string) Resource { return Resource{Kind: ResourceRoom, ID: id} }

// TeacherResource wraps a teacher id.
func TeacherResource(id string) Resource { return Resource{Kind: ResourceTeacher, ID: id} }

// LinkResource identifies the lecture/lab link group of a section.
func LinkResource(baseCode string, sectionNumber int) Resource {
	return Resource{Kind: ResourceLink, ID: fmt.Sprintf("%s#%d", baseCode, sectionNumber)}
}

type cellKey struct {
	res  int32
	day  Day
	slot int
}

type cellRef struct {
	r    Resource
	day  Day
	slot int
}

// Reservation asks for a set of resources across days and slots.
type Reservation struct {
	Resources []Resource
	Days      []Day
	Slots     []int
}

// Tracker records occupied cells for one run. Resources are interned to
// integer keys on first occupation.
type Tracker struct {
	ids   map[Resource]int32
	cells map[cellKey]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ids:   make(map[Resource]int32),
		cells: make(map[cellKey]struct{}),
	}
}

func (t *Tracker) intern(r Resource) int32 {
	if id, ok := t.ids[r]; ok {
		return id
	}
	id := int32(len(t.ids))
	t.ids[r] = id
	return id
}

// IsFree reports whether r is unoccupied at (day, slot).
func (t *Tracker) IsFree(r Resource, day Day, slot int) bool {
	id, ok := t.ids[r]
	if !ok {
		return true
	}
	_, busy := t.cells[cellKey{res: id, day: day, slot: slot}]
	return !busy
}

// Occupy marks r busy at (day, slot). Occupying a busy cell is a no-op.
func (t *Tracker) Occupy(r Resource, day Day, slot int) {
	t.cells[cellKey{res: t.intern(r), day: day, slot: slot}] = struct{}{}
}

// Available reports whether every resource is free on every (day, slot).
func (t *Tracker) Available(resources []Resource, days []Day, slots []int) bool {
	for _, r := range resources {
		for _, d := range days {
			for _, s := range slots {
				if !t.IsFree(r, d, s) {
					return false
				}
			}
		}
	}
	return true
}

// Reserve occupies every requested cell or none. Reservations in one call
// must not collide with each other either.
func (t *Tracker) Reserve(reservations ...Reservation) bool {
	seen := make(map[cellRef]struct{})
	for _, res := range reservations {
		for _, r := range res.Resources {
			for _, d := range res.Days {
				for _, s := range res.Slots {
					if !t.IsFree(r, d, s) {
						return false
					}
					key := cellRef{r: r, day: d, slot: s}
					if _, dup := seen[key]; dup {
						return false
					}
					seen[key] = struct{}{}
				}
			}
		}
	}
	for _, res := range reservations {
		for _, r := range res.Resources {
			for _, d := range res.Days {
				for _, s := range res.Slots {
					t.Occupy(r, d, s)
				}
			}
		}
	}
	return true
}

// Occupied returns the number of busy cells.
func (t *Tracker) Occupied() int { return len(t.cells) }
