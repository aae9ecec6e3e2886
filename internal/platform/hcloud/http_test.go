package hcloud

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imamik/svmzner/internal/config"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// fakeAPI is an in-memory Hetzner Cloud API covering the endpoints the
// provider uses. Objects are stored as the JSON maps the API returns.
type fakeAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	nextID    int64
	images    []map[string]any
	sshKeys   map[string]map[string]any
	firewalls map[string]map[string]any
	volumes   map[string]map[string]any
	servers   map[string]map[string]any
	creates   map[string]int
	deletes   map[string]int
	// dnsPtrs maps an address to its PTR record.
	dnsPtrs map[string]string

	// serverCreateErr, when set, is returned for the next server create.
	serverCreateErr *apiError
	// noAddress leaves created servers without public addresses.
	noAddress bool
}

type apiError struct {
	status  int
	code    string
	message string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		nextID:    100,
		sshKeys:   map[string]map[string]any{},
		firewalls: map[string]map[string]any{},
		volumes:   map[string]map[string]any{},
		servers:   map[string]map[string]any{},
		creates:   map[string]int{},
		deletes:   map[string]int{},
		dnsPtrs:   map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/images", f.handleImages)
	mux.HandleFunc("/images/", f.handleImageItem)
	mux.HandleFunc("/ssh_keys", f.collection("ssh_keys", "ssh_key", f.sshKeys, f.createSSHKey))
	mux.HandleFunc("/ssh_keys/", f.item(f.sshKeys))
	mux.HandleFunc("/firewalls", f.collection("firewalls", "firewall", f.firewalls, f.createFirewall))
	mux.HandleFunc("/firewalls/", f.item(f.firewalls))
	mux.HandleFunc("/volumes", f.collection("volumes", "volume", f.volumes, f.createVolume))
	mux.HandleFunc("/volumes/", f.handleVolumeItem)
	mux.HandleFunc("/servers", f.collection("servers", "server", f.servers, f.createServer))
	mux.HandleFunc("/servers/", f.handleServerItem)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) client() *RealClient {
	return NewRealClient("test-token",
		WithHCloudClient(hcloud.NewClient(
			hcloud.WithToken("test-token"),
			hcloud.WithEndpoint(f.server.URL),
		)),
		WithTimeouts(config.TestTimeouts()),
	)
}

func (f *fakeAPI) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeAPI) addImage(id int64, name, imageType, arch string, created time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img := map[string]any{
		"id":           id,
		"type":         imageType,
		"status":       "available",
		"name":         name,
		"description":  name,
		"architecture": arch,
		"created":      created.Format(time.RFC3339),
		"labels":       map[string]string{},
		"deprecated":   nil,
	}
	if imageType == "snapshot" {
		img["name"] = nil
	}
	f.images = append(f.images, img)
}

// deprecateImage marks an image deprecated. It stays retrievable by ID.
func (f *fakeAPI) deprecateImage(id int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.images {
		if img["id"] == id {
			img["deprecated"] = at.Format(time.RFC3339)
		}
	}
}

func (f *fakeAPI) removeImage(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = slices.DeleteFunc(f.images, func(img map[string]any) bool { return img["id"] == id })
}

func (f *fakeAPI) handleImageItem(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/images/"), 10, 64)
	if err != nil {
		http.Error(w, "bad image id", http.StatusBadRequest)
		return
	}
	for _, img := range f.images {
		if img["id"] == id {
			jsonResponse(w, http.StatusOK, map[string]any{"image": img})
			return
		}
	}
	writeAPIError(w, &apiError{http.StatusNotFound, "not_found", "image not found"})
}

func (f *fakeAPI) handleImages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wantType := r.URL.Query()["type"]
	out := []map[string]any{}
	for _, img := range f.images {
		if len(wantType) > 0 && img["type"] != wantType[0] {
			continue
		}
		out = append(out, img)
	}
	jsonResponse(w, http.StatusOK, map[string]any{"images": out})
}

type createFunc func(body map[string]any) (obj map[string]any, extra map[string]any, apiErr *apiError)

func (f *fakeAPI) collection(plural, singular string, store map[string]map[string]any, create createFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			out := []map[string]any{}
			name := r.URL.Query().Get("name")
			selector := r.URL.Query().Get("label_selector")
			for _, obj := range store {
				if name != "" && obj["name"] != name {
					continue
				}
				if selector != "" && !matchesSelector(obj, selector) {
					continue
				}
				out = append(out, obj)
			}
			jsonResponse(w, http.StatusOK, map[string]any{plural: out})
		case http.MethodPost:
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			name, _ := body["name"].(string)
			if _, exists := store[name]; exists {
				writeAPIError(w, &apiError{http.StatusConflict, "uniqueness_error", "name is already used"})
				return
			}
			obj, extra, apiErr := create(body)
			if apiErr != nil {
				writeAPIError(w, apiErr)
				return
			}
			store[name] = obj
			f.creates[singular]++
			resp := map[string]any{singular: obj}
			for k, v := range extra {
				resp[k] = v
			}
			jsonResponse(w, http.StatusCreated, resp)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (f *fakeAPI) item(store map[string]map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		name, obj := lookupByPath(store, r.URL.Path)
		if obj == nil {
			writeAPIError(w, &apiError{http.StatusNotFound, "not_found", "not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			jsonResponse(w, http.StatusOK, map[string]any{singularOf(r.URL.Path): obj})
		case http.MethodDelete:
			delete(store, name)
			f.deletes[singularOf(r.URL.Path)]++
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (f *fakeAPI) handleVolumeItem(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/actions/detach") {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, obj := lookupByPath(f.volumes, strings.TrimSuffix(r.URL.Path, "/actions/detach"))
		if obj != nil {
			obj["server"] = nil
		}
		jsonResponse(w, http.StatusCreated, map[string]any{"action": successAction(f.id(), "detach_volume")})
		return
	}
	f.item(f.volumes)(w, r)
}

func (f *fakeAPI) handleServerItem(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if strings.HasSuffix(r.URL.Path, "/actions/poweron") {
		_, obj := lookupByPath(f.servers, strings.TrimSuffix(r.URL.Path, "/actions/poweron"))
		if obj != nil {
			obj["status"] = "running"
		}
		jsonResponse(w, http.StatusCreated, map[string]any{"action": successAction(f.id(), "start_server")})
		f.mu.Unlock()
		return
	}
	if strings.HasSuffix(r.URL.Path, "/actions/change_dns_ptr") {
		var body struct {
			IP     string  `json:"ip"`
			DNSPtr *string `json:"dns_ptr"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.DNSPtr != nil {
			f.dnsPtrs[body.IP] = *body.DNSPtr
		}
		jsonResponse(w, http.StatusCreated, map[string]any{"action": successAction(f.id(), "change_dns_ptr")})
		f.mu.Unlock()
		return
	}
	if r.Method == http.MethodDelete {
		name, obj := lookupByPath(f.servers, r.URL.Path)
		if obj == nil {
			f.mu.Unlock()
			writeAPIError(w, &apiError{http.StatusNotFound, "not_found", "not found"})
			return
		}
		delete(f.servers, name)
		f.deletes["server"]++
		for _, vol := range f.volumes {
			if vol["server"] == obj["id"] {
				vol["server"] = nil
			}
		}
		jsonResponse(w, http.StatusOK, map[string]any{"action": successAction(f.id(), "delete_server")})
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.item(f.servers)(w, r)
}

func (f *fakeAPI) createSSHKey(body map[string]any) (map[string]any, map[string]any, *apiError) {
	return map[string]any{
		"id":          f.id(),
		"name":        body["name"],
		"public_key":  body["public_key"],
		"fingerprint": "aa:bb:cc",
		"labels":      body["labels"],
		"created":     time.Now().UTC().Format(time.RFC3339),
	}, nil, nil
}

func (f *fakeAPI) createFirewall(body map[string]any) (map[string]any, map[string]any, *apiError) {
	rules := body["rules"]
	if rules == nil {
		rules = []any{}
	}
	return map[string]any{
		"id":         f.id(),
		"name":       body["name"],
		"rules":      rules,
		"labels":     body["labels"],
		"applied_to": []any{},
		"created":    time.Now().UTC().Format(time.RFC3339),
	}, map[string]any{"actions": []any{}}, nil
}

func (f *fakeAPI) createVolume(body map[string]any) (map[string]any, map[string]any, *apiError) {
	id := f.id()
	location, _ := body["location"].(string)
	return map[string]any{
			"id":           id,
			"name":         body["name"],
			"size":         body["size"],
			"server":       nil,
			"status":       "available",
			"location":     map[string]any{"id": 1, "name": location},
			"linux_device": fmt.Sprintf("/dev/disk/by-id/scsi-0HC_Volume_%d", id),
			"labels":       body["labels"],
			"protection":   map[string]any{"delete": false},
			"format":       nil,
			"created":      time.Now().UTC().Format(time.RFC3339),
		}, map[string]any{
			"action":       successAction(f.id(), "create_volume"),
			"next_actions": []any{},
		}, nil
}

func (f *fakeAPI) createServer(body map[string]any) (map[string]any, map[string]any, *apiError) {
	if f.serverCreateErr != nil {
		err := f.serverCreateErr
		f.serverCreateErr = nil
		return nil, nil, err
	}
	id := f.id()
	volumes := []any{}
	if vs, ok := body["volumes"].([]any); ok {
		volumes = vs
	}
	for _, v := range volumes {
		for _, vol := range f.volumes {
			if fmt.Sprint(vol["id"]) == fmt.Sprint(v) {
				vol["server"] = id
			}
		}
	}
	ipv4 := map[string]any{"id": 1, "ip": "203.0.113.10", "blocked": false}
	ipv6 := map[string]any{"id": 2, "ip": "2001:db8:1::/64", "blocked": false}
	if f.noAddress {
		ipv4 = nil
		ipv6 = nil
	}
	return map[string]any{
			"id":          id,
			"name":        body["name"],
			"status":      "running",
			"labels":      body["labels"],
			"volumes":     volumes,
			"private_net": []any{},
			"public_net": map[string]any{
				"ipv4":         ipv4,
				"ipv6":         ipv6,
				"floating_ips": []any{},
				"firewalls":    []any{},
			},
			"server_type": map[string]any{"id": 1, "name": body["server_type"]},
			"created":     time.Now().UTC().Format(time.RFC3339),
			"user_data":   body["user_data"],
		}, map[string]any{
			"action":       successAction(f.id(), "create_server"),
			"next_actions": []any{},
		}, nil
}

func (f *fakeAPI) created(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[kind]
}

func (f *fakeAPI) deleted(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[kind]
}

func (f *fakeAPI) lastServerRequest(name string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.servers[name]
}

func successAction(id int64, command string) map[string]any {
	now := time.Now().UTC().Format(time.RFC3339)
	return map[string]any{
		"id":        id,
		"command":   command,
		"status":    "success",
		"progress":  100,
		"started":   now,
		"finished":  now,
		"resources": []any{},
		"error":     nil,
	}
}

func lookupByPath(store map[string]map[string]any, path string) (string, map[string]any) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", nil
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", nil
	}
	for name, obj := range store {
		if fmt.Sprint(obj["id"]) == strconv.FormatInt(id, 10) {
			return name, obj
		}
	}
	return "", nil
}

func singularOf(path string) string {
	switch strings.Split(strings.Trim(path, "/"), "/")[0] {
	case "ssh_keys":
		return "ssh_key"
	case "firewalls":
		return "firewall"
	case "volumes":
		return "volume"
	default:
		return "server"
	}
}

func matchesSelector(obj map[string]any, selector string) bool {
	labels, _ := obj["labels"].(map[string]any)
	for _, term := range strings.Split(selector, ",") {
		k, v, _ := strings.Cut(term, "=")
		if fmt.Sprint(labels[k]) != v {
			return false
		}
	}
	return true
}

func writeAPIError(w http.ResponseWriter, e *apiError) {
	jsonResponse(w, e.status, map[string]any{
		"error": map[string]any{"code": e.code, "message": e.message},
	})
}

// jsonResponse writes a JSON response with the given status code and body.
func jsonResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
