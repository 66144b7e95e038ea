package lawparse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	libroPattern    = regexp.MustCompile(`(?i)^LIBRO\s+([A-ZÁÉÍÓÚÑ]+)\s*$`)
	tituloPattern   = regexp.MustCompile(`(?i)^TITULO\s+([A-ZÁÉÍÓÚÑ]+)\s*$`)
	capituloPattern = regexp.MustCompile(`(?i)^CAPITULO\s+([IVXLCDM]+)\s*$`)
	articuloPattern = regexp.MustCompile(`(?i)^Art[íi]?t?culo\s+(\d+)\s*(?:[°º])?\s*\.?\s*-\s*$`)

	leyPattern          = regexp.MustCompile(`(?i)LEY\s*N[°º]?\s*(\d+)`)
	promulgacionPattern = regexp.MustCompile(`(?i)Fecha\s+de\s+Promulgaci[oó]n:?\s*(\d{2}-\d{2}-\d{4})`)
	publicacionPattern  = regexp.MustCompile(`(?i)Fecha\s+de\s+Publicaci[oó]n:?\s*(\d{2}-\d{2}-\d{4})`)

	// The preamble ends where the first chapter begins.
	preambleEndPattern = regexp.MustCompile(`(?i)^CAP[IÍ]TULO\s+I\b`)
)

// ordinalNumbers maps the spelled-out book ordinals used by the statute.
var ordinalNumbers = map[string]int{
	"PRIMERO": 1, "SEGUNDO": 2, "TERCERO": 3, "CUARTO": 4, "QUINTO": 5,
	"SEXTO": 6, "SÉPTIMO": 7, "SEPTIMO": 7, "OCTAVO": 8, "NOVENO": 9,
	"DÉCIMO": 10, "DECIMO": 10, "UNDÉCIMO": 11, "UNDECIMO": 11,
	"DUODÉCIMO": 12, "DUODECIMO": 12,
}

var romanValues = map[rune]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// RomanToInt converts a roman numeral to its integer value.
func RomanToInt(roman string) int {
	runes := []rune(strings.ToUpper(strings.TrimSpace(roman)))

	total := 0
	prev := 0
	for i := len(runes) - 1; i >= 0; i-- {
		val := romanValues[runes[i]]
		if val < prev {
			total -= val
		} else {
			total += val
			prev = val
		}
	}
	return total
}

// Parse segments the extracted plain text into header metadata and articles.
func Parse(raw string) *Document {
	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		if t := strings.TrimSpace(ln); t != "" {
			lines = append(lines, t)
		}
	}

	return &Document{
		Meta:      extractMeta(lines),
		Articulos: extractArticles(lines),
	}
}

// extractMeta pulls the law number and dates from the preamble, the lines
// before the first chapter header.
func extractMeta(lines []string) Meta {
	var preamble []string
	for _, ln := range lines {
		if preambleEndPattern.MatchString(ln) {
			break
		}
		preamble = append(preamble, ln)
	}
	text := strings.Join(preamble, " ")

	var meta Meta
	if m := leyPattern.FindStringSubmatch(text); m != nil {
		meta.NumeroLey = m[1]
	}
	if m := promulgacionPattern.FindStringSubmatch(text); m != nil {
		meta.FechaPromulgacion = m[1]
	}
	if m := publicacionPattern.FindStringSubmatch(text); m != nil {
		meta.FechaPublicacion = m[1]
	}
	return meta
}

// extractArticles walks the lines carrying the current book, title and
// chapter context, and collects article bodies until the next header.
func extractArticles(lines []string) []Article {
	var (
		articles []Article

		currentLibro        string
		currentLibroNum     int
		currentTitulo       string
		currentCapitulo     string
		currentCapituloNum  int
		currentCapituloDesc string

		articleNum   int
		articleLines []string
		inArticle    bool
	)

	flush := func() {
		if !inArticle {
			return
		}
		body := strings.TrimSpace(strings.Join(articleLines, "\n"))
		body = strings.ReplaceAll(strings.ToLower(body), "\n", "")

		articles = append(articles, Article{
			ArticuloNumero:      articleNum,
			Libro:               strings.ToLower(currentLibro),
			LibroNumero:         currentLibroNum,
			Titulo:              strings.ToLower(currentTitulo),
			Capitulo:            strings.ToLower(currentCapitulo),
			CapituloNumero:      currentCapituloNum,
			CapituloDescripcion: strings.ToLower(currentCapituloDesc),
			Texto:               body,
		})
		inArticle = false
	}

	i := 0
	for i < len(lines) {
		ln := lines[i]

		if m := libroPattern.FindStringSubmatch(ln); m != nil {
			flush()
			currentLibro = "LIBRO " + m[1]
			currentLibroNum = ordinalNumbers[strings.ToUpper(m[1])]
			i++
			continue
		}

		if m := tituloPattern.FindStringSubmatch(ln); m != nil {
			flush()
			currentTitulo = "TITULO " + m[1]
			i++
			continue
		}

		if m := capituloPattern.FindStringSubmatch(ln); m != nil {
			flush()
			currentCapitulo = "CAPITULO " + m[1]
			currentCapituloNum = RomanToInt(m[1])
			currentCapituloDesc = ""
			// The following line is the chapter description unless it is
			// itself a header or an article start.
			if i+1 < len(lines) && !isHeader(lines[i+1]) {
				currentCapituloDesc = lines[i+1]
				i += 2
			} else {
				i++
			}
			continue
		}

		if m := articuloPattern.FindStringSubmatch(ln); m != nil {
			flush()
			articleNum, _ = strconv.Atoi(m[1])
			articleLines = nil
			inArticle = true
			i++
			for i < len(lines) && !isHeader(lines[i]) {
				articleLines = append(articleLines, lines[i])
				i++
			}
			continue
		}

		i++
	}
	flush()

	return articles
}

func isHeader(ln string) bool {
	return libroPattern.MatchString(ln) ||
		tituloPattern.MatchString(ln) ||
		capituloPattern.MatchString(ln) ||
		articuloPattern.MatchString(ln)
}
