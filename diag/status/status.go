package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/origami-state/osm/config"
	"github.com/origami-state/osm/internal/utils"
)

type StorageType string
type HealthStatus string

const (
	// Storage is the component name of the storage records. It can't be used
	// as a store name.
	Storage = "storage"

	MemoryStorage   StorageType = "memory"
	FileStorage     StorageType = "file"
	RedisStorage    StorageType = "redis"
	MongoDbStorage  StorageType = "mongodb"
	DynamoDbStorage StorageType = "dynamodb"

	Healthy      HealthStatus = "healthy"
	Degraded     HealthStatus = "degraded"
	Initializing HealthStatus = "initializing"
	Down         HealthStatus = "down"
	NA           HealthStatus = "n/a"
)

const maxRecordCount = 5
const maxLastErrorsMeaningDegraded = 2

type Reporter interface {
	RegisterStore(name string)
	ReportState(store string, state string, keys int)

	ReportOk(component string, message string)
	ReportError(component string, message string)
	GetStatus() Status

	HttpHandler() http.HandlerFunc
}

type Status struct {
	Status  HealthStatus            `json:"status"`
	Stores  map[string]*StoreStatus `json:"stores"`
	Storage StorageStatus           `json:"storage"`
}

type StoreStatus struct {
	State   string       `json:"state"`
	Keys    int          `json:"keys"`
	Status  HealthStatus `json:"status"`
	Records []string     `json:"records"`
}

type StorageStatus struct {
	Type    StorageType  `json:"type"`
	Status  HealthStatus `json:"status"`
	Records []string     `json:"records"`
}

type record struct {
	time    time.Time
	isError bool
	message string
}

type reporter struct {
	records map[string][]record
	mu      sync.RWMutex
	status  Status
}

func NewEmptyReporter() Reporter {
	return NewReporter(&config.StorageConfig{})
}

func NewReporter(conf *config.StorageConfig) Reporter {
	r := &reporter{
		records: make(map[string][]record),
		status: Status{
			Status: Initializing,
			Stores: make(map[string]*StoreStatus),
			Storage: StorageStatus{
				Type:   storageType(conf),
				Status: Initializing,
			},
		},
	}
	if !conf.IsSet() {
		r.status.Storage.Status = NA
	}
	return r
}

func (r *reporter) RegisterStore(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Stores[name] = &StoreStatus{
		State:  "uninitialized",
		Status: Initializing,
	}
	r.recalculate()
}

func (r *reporter) ReportState(store string, state string, keys int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.status.Stores[store]; ok {
		st.State = state
		st.Keys = keys
	}
}

func (r *reporter) ReportOk(component string, message string) {
	r.appendRecord(component, "[ok] "+message, false)
}

func (r *reporter) ReportError(component string, message string) {
	r.appendRecord(component, "[error] "+message, true)
}

func (r *reporter) HttpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, err := json.Marshal(r.GetStatus())
		if err != nil {
			http.Error(w, "Error producing status", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(status)
	}
}

func (r *reporter) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := Status{
		Status: r.status.Status,
		Stores: make(map[string]*StoreStatus, len(r.status.Stores)),
		Storage: StorageStatus{
			Type:    r.status.Storage.Type,
			Status:  r.status.Storage.Status,
			Records: r.status.Storage.Records,
		},
	}
	for name, st := range r.status.Stores {
		c := *st
		result.Stores[name] = &c
	}
	return result
}

func (r *reporter) checkStatus(records []record) ([]string, HealthStatus) {
	length := len(records)
	targetRecords := make([]string, length)
	var errorCount = 0
	for i, msg := range records {
		targetRecords[i] = msg.time.UTC().Format(time.RFC1123) + ": " + msg.message
		if i >= length-maxLastErrorsMeaningDegraded {
			if msg.isError {
				errorCount++
			} else {
				errorCount--
			}
		}
	}
	if errorCount > 0 && errorCount >= utils.Min(maxLastErrorsMeaningDegraded, length) {
		return targetRecords, Degraded
	}
	return targetRecords, Healthy
}

func (r *reporter) appendRecord(component string, message string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, isStore := r.status.Stores[component]
	if component != Storage && !isStore {
		return
	}

	recs, ok := r.records[component]
	if !ok {
		recs = make([]record, 0, maxRecordCount)
	}
	recs = append(recs, record{time: time.Now(), isError: isError, message: message})
	if len(recs) > maxRecordCount {
		recs = recs[1:]
	}
	r.records[component] = recs
	rec, stat := r.checkStatus(recs)
	if component == Storage {
		r.status.Storage.Records = rec
		if stat == Degraded && r.status.Storage.Status == Initializing {
			stat = Down
		}
		r.status.Storage.Status = stat
		return
	}
	st.Records = rec
	if stat == Degraded && (st.Status == Initializing || st.Status == Down) {
		stat = Down
	}
	st.Status = stat
	r.recalculate()
}

// recalculate derives the overall status from the store states. Must be
// called with the lock held.
func (r *reporter) recalculate() {
	if len(r.status.Stores) == 0 {
		r.status.Status = Initializing
		return
	}
	allStoresDown := true
	hasDegradedStore := false
	allInitializing := true
	for _, st := range r.status.Stores {
		if st.Status != Down {
			allStoresDown = false
		}
		if st.Status != Initializing {
			allInitializing = false
		}
		if st.Status != Healthy && st.Status != Initializing {
			hasDegradedStore = true
		}
	}
	switch {
	case allInitializing:
		r.status.Status = Initializing
	case allStoresDown:
		r.status.Status = Down
	case hasDegradedStore:
		r.status.Status = Degraded
	default:
		r.status.Status = Healthy
	}
}

func storageType(conf *config.StorageConfig) StorageType {
	switch {
	case conf.Redis.Enabled:
		return RedisStorage
	case conf.MongoDb.Enabled:
		return MongoDbStorage
	case conf.DynamoDb.Enabled:
		return DynamoDbStorage
	case conf.File.Enabled:
		return FileStorage
	default:
		return MemoryStorage
	}
}
