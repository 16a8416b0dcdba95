// Package population supplies the candidate record snapshot that
// segmentation rules are evaluated against. The built-in snapshot is mock
// data; the repository contract is read-only per run.
package population

import (
	"sort"

	"github.com/corrift/segmentd/internal/rules"
)

// Record is one candidate customer. Well-known attributes are struct fields;
// everything else lives in the dynamically typed Features map.
type Record struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Tier        string                 `json:"tier"`
	Score       float64                `json:"score"`
	RecentStore string                 `json:"recentStore"`
	LastVisit   string                 `json:"lastVisit"`
	Reason      string                 `json:"reason"`
	Features    map[string]rules.Value `json:"-"`
}

// SubjectID implements rules.Subject.
func (r Record) SubjectID() string { return r.ID }

// Field implements rules.Subject. Struct attributes shadow the Features map;
// unknown fields resolve to Null.
func (r Record) Field(name string) rules.Value {
	switch name {
	case "id":
		return rules.String(r.ID)
	case "name":
		return rules.String(r.Name)
	case "tier":
		return rules.String(r.Tier)
	case "score":
		return rules.Number(r.Score)
	case "recentStore":
		return rules.String(r.RecentStore)
	case "lastVisit":
		return rules.String(r.LastVisit)
	case "reason":
		return rules.String(r.Reason)
	}
	if v, ok := r.Features[name]; ok {
		return v
	}
	return rules.Null()
}

func (r Record) clone() Record {
	out := r
	if r.Features != nil {
		out.Features = make(map[string]rules.Value, len(r.Features))
		for k, v := range r.Features {
			out.Features[k] = v
		}
	}
	return out
}

// Repository hands out read-only snapshots of the candidate pool.
type Repository struct {
	records []Record
}

// NewRepository returns a repository over the built-in mock snapshot.
func NewRepository() *Repository {
	return &Repository{records: mockRecords}
}

// NewRepositoryWith returns a repository over a caller-supplied pool.
func NewRepositoryWith(records []Record) *Repository {
	return &Repository{records: records}
}

// Snapshot returns a deep copy of the pool in stable order. Callers may
// mutate the result freely.
func (repo *Repository) Snapshot() []Record {
	out := make([]Record, len(repo.records))
	for i, r := range repo.records {
		out[i] = r.clone()
	}
	return out
}

// Size returns the pool size.
func (repo *Repository) Size() int { return len(repo.records) }

// Subjects returns the snapshot as rule-evaluation subjects.
func (repo *Repository) Subjects() []rules.Subject {
	records := repo.Snapshot()
	out := make([]rules.Subject, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

// Ranked is a record annotated with its match score.
type Ranked struct {
	Record
	MatchScore float64 `json:"matchScore"`
}

// HighPotential returns the top records by match score, descending, capped
// at limit.
func (repo *Repository) HighPotential(limit int) []Ranked {
	ranked := make([]Ranked, 0, len(repo.records))
	for _, r := range repo.records {
		ranked = append(ranked, Ranked{Record: r.clone(), MatchScore: rules.MatchScore(r)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}
