package rag

import (
	"strings"
	"testing"
)

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(nil); got != EmptyContext {
		t.Errorf("BuildContext(nil) = %q, want %q", got, EmptyContext)
	}
	if got := BuildContext([]Document{}); got != EmptyContext {
		t.Errorf("BuildContext([]) = %q, want %q", got, EmptyContext)
	}
}

func TestBuildContextFormat(t *testing.T) {
	docs := []Document{
		{
			Payload: map[string]interface{}{
				"articulo":             "el trabajador tendrá derecho a vacaciones",
				"capitulo_descripcion": "de las vacaciones anuales",
				"articulo_numero":      218,
			},
		},
		{
			Payload: map[string]interface{}{
				"articulo":             "la duración máxima de la jornada",
				"capitulo_descripcion": "de la jornada de trabajo",
				"articulo_numero":      "194",
			},
		},
	}

	got := BuildContext(docs)
	want := "Documento 1:\n" +
		"el trabajador tendrá derecho a vacaciones [Capítulo: de las vacaciones anuales - Artículo número: 218]\n" +
		"\n" +
		"Documento 2:\n" +
		"la duración máxima de la jornada [Capítulo: de la jornada de trabajo - Artículo número: 194]\n"

	if got != want {
		t.Errorf("BuildContext() = %q, want %q", got, want)
	}
}

func TestBuildContextPayloadFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    "Texto no disponible [Capítulo: Descripción no disponible - Artículo número: N/A]",
		},
		{
			name:    "empty strings",
			payload: map[string]interface{}{"articulo": "", "capitulo_descripcion": ""},
			want:    "Texto no disponible [Capítulo: Descripción no disponible - Artículo número: N/A]",
		},
		{
			name:    "wrong types",
			payload: map[string]interface{}{"articulo": 42, "capitulo_descripcion": true},
			want:    "Texto no disponible [Capítulo: Descripción no disponible - Artículo número: N/A]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildContext([]Document{{Payload: tt.payload}})
			if !strings.Contains(got, tt.want) {
				t.Errorf("BuildContext() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestDocumentRerankText(t *testing.T) {
	doc := Document{
		Payload: map[string]interface{}{
			"articulo":             "el contrato de trabajo es consensual",
			"capitulo_descripcion": "del contrato en general",
		},
	}

	want := "del contrato en general: el contrato de trabajo es consensual"
	if got := doc.RerankText(); got != want {
		t.Errorf("RerankText() = %q, want %q", got, want)
	}
}

func TestDocumentArticleNumberKeepsStoredType(t *testing.T) {
	asInt := Document{Payload: map[string]interface{}{"articulo_numero": 17}}
	if got := asInt.ArticleNumber(); got != 17 {
		t.Errorf("ArticleNumber() = %v, want 17", got)
	}

	asFloat := Document{Payload: map[string]interface{}{"articulo_numero": float64(17)}}
	if got := asFloat.ArticleNumber(); got != float64(17) {
		t.Errorf("ArticleNumber() = %v, want 17.0", got)
	}

	missing := Document{Payload: map[string]interface{}{}}
	if got := missing.ArticleNumber(); got != "N/A" {
		t.Errorf("ArticleNumber() = %v, want N/A", got)
	}
}
