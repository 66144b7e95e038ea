package lawparse

// DefaultLawURL is the official page of the Paraguayan labour code (Ley 213).
const DefaultLawURL = "https://www.bacn.gov.py/leyes-paraguayas/2608/ley-n-213-establece-el-codigo-del-trabajo"

// DefaultFilename is the conventional name of the processed output file.
const DefaultFilename = "codigo_trabajo_articulos.json"

// Meta holds the law-level header fields extracted from the page preamble.
type Meta struct {
	NumeroLey         string `json:"numero_ley,omitempty"`
	FechaPromulgacion string `json:"fecha_promulgacion,omitempty"`
	FechaPublicacion  string `json:"fecha_publicacion,omitempty"`
}

// Article is one segmented article together with its positional headers.
// Text fields are lowercased by the parser.
type Article struct {
	ArticuloNumero      int    `json:"articulo_numero"`
	Libro               string `json:"libro,omitempty"`
	LibroNumero         int    `json:"libro_numero,omitempty"`
	Titulo              string `json:"titulo,omitempty"`
	Capitulo            string `json:"capitulo,omitempty"`
	CapituloNumero      int    `json:"capitulo_numero,omitempty"`
	CapituloDescripcion string `json:"capitulo_descripcion,omitempty"`
	Texto               string `json:"texto,omitempty"`
	// Articulo carries the body in files produced by older pipelines that
	// used this key instead of texto.
	Articulo string `json:"articulo,omitempty"`
}

// Body returns the article text regardless of which key the source file used.
func (a *Article) Body() string {
	if a.Articulo != "" {
		return a.Articulo
	}
	return a.Texto
}

// Document is the parsed law: header metadata plus segmented articles.
type Document struct {
	Meta      Meta      `json:"meta"`
	Articulos []Article `json:"articulos"`
}
