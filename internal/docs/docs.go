package docs

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/library-core/internal/library"
)

//go:embed openapi.yaml index.html
var content embed.FS

// ErrUnknownKind is returned by Schema for names other than book, member and loan.
var ErrUnknownKind = errors.New("docs: unknown record kind")

var kindTypes = map[string]reflect.Type{
	library.Books.Name:   reflect.TypeFor[library.Book](),
	library.Members.Name: reflect.TypeFor[library.Member](),
	library.Loans.Name:   reflect.TypeFor[library.Loan](),
}

var (
	jsonOnce sync.Once
	jsonDoc  []byte
	jsonErr  error
)

// OpenAPIYAML returns the embedded OpenAPI document.
func OpenAPIYAML() []byte {
	data, err := content.ReadFile("openapi.yaml")
	if err != nil {
		panic(fmt.Sprintf("docs: embedded openapi.yaml missing: %v", err))
	}
	return data
}

// OpenAPIJSON returns the OpenAPI document converted to JSON.
func OpenAPIJSON() ([]byte, error) {
	jsonOnce.Do(func() {
		var doc any
		if err := yaml.Unmarshal(OpenAPIYAML(), &doc); err != nil {
			jsonErr = fmt.Errorf("parsing openapi.yaml: %w", err)
			return
		}
		jsonDoc, jsonErr = json.Marshal(doc)
		if jsonErr != nil {
			jsonErr = fmt.Errorf("encoding openapi json: %w", jsonErr)
		}
	})
	return jsonDoc, jsonErr
}

// Schema returns the JSON Schema of a record kind.
func Schema(kind string) (*jsonschema.Schema, error) {
	t, ok := kindTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(t)
	schema.Title = kind
	return schema, nil
}

// Handler serves the documentation UI and documents. Mount it under a prefix:
//
//	GET /                 Swagger UI page
//	GET /openapi.yaml     OpenAPI document
//	GET /openapi.json     OpenAPI document as JSON
//	GET /schema/{kind}.json  JSON Schema of book, member or loan
func Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		// Relative links in the page need the trailing slash.
		if !strings.HasSuffix(req.URL.Path, "/") {
			http.Redirect(w, req, req.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		page, err := content.ReadFile("index.html")
		if err != nil {
			http.Error(w, "documentation page missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		_, _ = w.Write(page) //nolint:errcheck // client disconnects are not actionable
	})

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(OpenAPIYAML()) //nolint:errcheck // client disconnects are not actionable
	})

	r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		data, err := OpenAPIJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data) //nolint:errcheck // client disconnects are not actionable
	})

	r.Get("/schema/{file}", func(w http.ResponseWriter, req *http.Request) {
		kind, ok := strings.CutSuffix(chi.URLParam(req, "file"), ".json")
		if !ok {
			http.NotFound(w, req)
			return
		}
		schema, err := Schema(kind)
		if err != nil {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		_ = json.NewEncoder(w).Encode(schema) //nolint:errcheck // client disconnects are not actionable
	})

	return r
}
