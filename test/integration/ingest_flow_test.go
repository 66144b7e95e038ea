package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/pkg/serverutils"
	"lus-laboris-api/pkg/lawparse"
)

func lawFixture() lawparse.Document {
	return lawparse.Document{
		Meta: lawparse.Meta{NumeroLey: "213", FechaPromulgacion: "29-10-1993"},
		Articulos: []lawparse.Article{
			{
				ArticuloNumero:      218,
				Libro:               "libro segundo",
				LibroNumero:         2,
				Capitulo:            "capitulo iv",
				CapituloNumero:      4,
				CapituloDescripcion: "de las vacaciones anuales",
				Texto:               "el trabajador tendrá derecho a doce días hábiles de vacaciones",
			},
			{
				ArticuloNumero:      219,
				Libro:               "libro segundo",
				LibroNumero:         2,
				Capitulo:            "capitulo iv",
				CapituloNumero:      4,
				CapituloDescripcion: "de las vacaciones anuales",
				Texto:               "las vacaciones se ampliarán según la antigüedad del trabajador",
			},
			{
				ArticuloNumero:      221,
				Libro:               "libro segundo",
				LibroNumero:         2,
				Capitulo:            "capitulo iv",
				CapituloNumero:      4,
				CapituloDescripcion: "de las vacaciones anuales",
				Texto:               "las vacaciones deben comenzar dentro de los seis meses siguientes",
			},
		},
	}
}

func writeFixture(t *testing.T, env *testEnv, filename string) {
	t.Helper()
	data, err := json.Marshal(lawFixture())
	if err != nil {
		t.Fatalf("marshal law fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(env.dataDir, filename), data, 0o644); err != nil {
		t.Fatalf("write law fixture: %v", err)
	}
}

// waitJob polls the jobs endpoint until the job reaches the wanted status.
func (e *testEnv) waitJob(t *testing.T, token, jobID string, want dto.JobStatus) dto.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last dto.Job
	for time.Now().Before(deadline) {
		resp := e.get(t, "/api/data/jobs/"+jobID, token)
		if resp.StatusCode == http.StatusOK {
			var body serverutils.BaseResponse[dto.Job]
			json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			last = body.Data
			if last.Status == want {
				return last
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s, last status %q (error %q)", jobID, want, last.Status, last.Error)
	return last
}

func TestVectorstoreEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t, 100)

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/api/data/load-to-vectorstore"},
		{"POST", "/api/data/load-to-vectorstore-remote"},
		{"GET", "/api/data/jobs"},
		{"GET", "/api/vectorstore/collections"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			var resp *http.Response
			if p.method == "POST" {
				resp = env.postJSON(t, p.path, "", map[string]string{"filename": "x.json"})
			} else {
				resp = env.get(t, p.path, "")
			}
			assert.Equal(t, 401, resp.StatusCode)

			var body serverutils.ErrorBody
			json.NewDecoder(resp.Body).Decode(&body)
			assert.False(t, body.Success)
			assert.Equal(t, "missing bearer token", body.Message)
		})
	}
}

func TestIngestionFlow(t *testing.T) {
	env := newTestEnv(t, 100)
	token := env.token(t)
	writeFixture(t, env, "codigo_trabajo_articulos.json")

	var jobID string

	t.Run("Load request queues a job", func(t *testing.T) {
		resp := env.postJSON(t, "/api/data/load-to-vectorstore", token, map[string]interface{}{
			"filename":           "codigo_trabajo_articulos.json",
			"replace_collection": true,
		})
		assert.Equal(t, 202, resp.StatusCode)

		var body serverutils.BaseResponse[dto.JobAcceptedResponse]
		json.NewDecoder(resp.Body).Decode(&body)

		assert.True(t, body.Success)
		assert.Equal(t, "Ingestion job queued", body.Message)
		assert.NotEmpty(t, body.Data.JobId)
		assert.Contains(t, []dto.JobStatus{dto.JobQueued, dto.JobProcessing, dto.JobCompleted}, body.Data.Status)

		jobID = body.Data.JobId
		t.Logf("✅ Job %s accepted", jobID)
	})

	t.Run("Job completes with insert counts", func(t *testing.T) {
		job := env.waitJob(t, token, jobID, dto.JobCompleted)

		assert.Equal(t, "load_to_vectorstore", job.Operation)
		assert.Equal(t, "test-admin", job.User)
		assert.Equal(t, testCollection, job.CollectionName)
		assert.Equal(t, "codigo_trabajo_articulos.json", job.Filename)
		assert.NotEmpty(t, job.StartedAt)
		assert.NotEmpty(t, job.CompletedAt)
		assert.Empty(t, job.Error)

		assert.EqualValues(t, 3, job.Result["documents_processed"])
		assert.EqualValues(t, 3, job.Result["documents_inserted"])
		assert.EqualValues(t, 3, job.Result["vector_dimensions"])
		assert.Equal(t, testCollection, job.Result["collection_name"])
		assert.Equal(t, "text-embedding-3-small", job.Result["embedding_model"])

		t.Logf("✅ Job finished: %v documents inserted", job.Result["documents_inserted"])
	})

	t.Run("Points carry the article payload", func(t *testing.T) {
		env.store.mu.Lock()
		points := env.store.upserts[testCollection]
		env.store.mu.Unlock()

		if !assert.Len(t, points, 3) {
			return
		}
		first := points[0].Payload
		assert.Equal(t, "el trabajador tendrá derecho a doce días hábiles de vacaciones", first["articulo"])
		assert.Equal(t, 218, first["articulo_numero"])
		assert.Equal(t, "de las vacaciones anuales", first["capitulo_descripcion"])
		assert.Equal(t, "codigo_trabajo_paraguay_ley213", first["source"])
		assert.Len(t, points[0].Vector, 3)
	})

	t.Run("Jobs listing includes the run", func(t *testing.T) {
		resp := env.get(t, "/api/data/jobs", token)
		assert.Equal(t, 200, resp.StatusCode)

		var body serverutils.BaseResponse[dto.JobListResponse]
		json.NewDecoder(resp.Body).Decode(&body)

		assert.Equal(t, body.Data.Total, len(body.Data.Jobs))
		found := false
		for _, job := range body.Data.Jobs {
			if job.JobID == jobID {
				found = true
				assert.Equal(t, dto.JobCompleted, job.Status)
			}
		}
		assert.True(t, found, "submitted job should be listed")
	})

	t.Run("Collections endpoint describes the collection", func(t *testing.T) {
		resp := env.get(t, "/api/vectorstore/collections", token)
		assert.Equal(t, 200, resp.StatusCode)

		var body serverutils.BaseResponse[dto.CollectionsResponse]
		json.NewDecoder(resp.Body).Decode(&body)

		assert.Equal(t, 1, body.Data.Total)
		if assert.Len(t, body.Data.Collections, 1) {
			info := body.Data.Collections[0]
			assert.Equal(t, testCollection, info.Name)
			assert.EqualValues(t, 3, info.PointsCount)
		}
	})

	t.Run("Missing file fails the job", func(t *testing.T) {
		resp := env.postJSON(t, "/api/data/load-to-vectorstore", token, map[string]string{
			"filename": "no_such_file.json",
		})
		assert.Equal(t, 202, resp.StatusCode)

		var body serverutils.BaseResponse[dto.JobAcceptedResponse]
		json.NewDecoder(resp.Body).Decode(&body)

		job := env.waitJob(t, token, body.Data.JobId, dto.JobFailed)
		assert.Contains(t, job.Error, "failed to load local data")
		assert.Nil(t, job.Result)

		t.Logf("✅ Failure surfaced through polling: %s", job.Error)
	})

	t.Run("Unknown job id is a 404", func(t *testing.T) {
		resp := env.get(t, "/api/data/jobs/ffffffff-0000-0000-0000-000000000000", token)
		assert.Equal(t, 404, resp.StatusCode)

		var body serverutils.ErrorBody
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Contains(t, body.Message, "not found")
	})

	t.Run("Empty filename is rejected", func(t *testing.T) {
		resp := env.postJSON(t, "/api/data/load-to-vectorstore", token, map[string]string{})
		assert.Equal(t, 400, resp.StatusCode)
	})
}

func (e *testEnv) delete(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("DELETE", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

func TestCollectionManagement(t *testing.T) {
	env := newTestEnv(t, 100)
	token := env.token(t)

	t.Run("Delete removes the collection", func(t *testing.T) {
		resp := env.delete(t, "/api/vectorstore/collections/"+testCollection, token)
		assert.Equal(t, 200, resp.StatusCode)

		list := env.get(t, "/api/vectorstore/collections", token)
		var body serverutils.BaseResponse[dto.CollectionsResponse]
		json.NewDecoder(list.Body).Decode(&body)
		assert.Equal(t, 0, body.Data.Total)
	})

	t.Run("Delete of an unknown collection is a 404", func(t *testing.T) {
		resp := env.delete(t, "/api/vectorstore/collections/nope", token)
		assert.Equal(t, 404, resp.StatusCode)

		var body serverutils.ErrorBody
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Contains(t, body.Message, "not found")
	})
}
