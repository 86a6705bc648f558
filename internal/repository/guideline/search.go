package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
)

// scanCap bounds the client-side fallback scans. The guideline corpus is
// curated and small; a hundred documents covers it with headroom.
const scanCap = 100

// VectorHybridSearch runs a KNN query and a BM25 query over the whole corpus
// and blends the two rankings.
func (s *Store) VectorHybridSearch(
	ctx context.Context, query string, vector []float32, opts search.Options, alpha float64,
) ([]search.Row, error) {
	return s.hybrid(ctx, query, vector, nil, opts, alpha)
}

// VectorHybridSearchByCategory is VectorHybridSearch restricted to a category
// allow-list via a TAG filter.
func (s *Store) VectorHybridSearchByCategory(
	ctx context.Context, query string, vector []float32,
	categories []guideline.Category, opts search.Options, alpha float64,
) ([]search.Row, error) {
	return s.hybrid(ctx, query, vector, categories, opts, alpha)
}

func (s *Store) hybrid(
	ctx context.Context, query string, vector []float32,
	categories []guideline.Category, opts search.Options, alpha float64,
) ([]search.Row, error) {
	opts = opts.WithDefaults()
	filter := tagFilter(categories)

	// Fetch more than the final limit so blending has room to reorder.
	fetchK := opts.Limit * 3
	if fetchK < 10 {
		fetchK = 10
	}

	knn, err := s.knnSearch(ctx, vector, filter, fetchK)
	if err != nil {
		return nil, err
	}
	text, err := s.textSearch(ctx, query, filter, fetchK)
	if err != nil {
		return nil, err
	}

	rows := blend(knn, text, alpha, opts.Threshold)
	if len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

// FullTextSearch ranks documents by BM25 relevance alone. TextRank carries
// the normalized score; Similarity stays zero.
func (s *Store) FullTextSearch(
	ctx context.Context, query string, opts search.Options,
) ([]search.Row, error) {
	opts = opts.WithDefaults()

	scored, err := s.textSearch(ctx, query, tagFilter(opts.Categories), opts.Limit)
	if err != nil {
		return nil, err
	}

	rows := make([]search.Row, len(scored))
	for i, sc := range scored {
		rows[i] = search.Row{Document: sc.doc, TextRank: sc.score, Combined: sc.score}
	}
	return rows, nil
}

// SubstringSearch scans the corpus for a case-insensitive substring of the
// query, restricted to a category allow-list. It works without any search
// module installed.
func (s *Store) SubstringSearch(
	ctx context.Context, query string, categories []guideline.Category, limit int,
) ([]search.Row, error) {
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	docs, err := s.scanDocs(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var rows []search.Row
	for _, doc := range docs {
		if !inCategories(doc.Category, categories) {
			continue
		}
		if !strings.Contains(strings.ToLower(doc.Content), needle) {
			continue
		}
		rows = append(rows, search.Row{Document: doc})
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

// KeywordSearch matches any of the given keywords against document content
// and the keyword field, weighting content hits double. Ties break by
// ascending document ID for a stable ordering.
func (s *Store) KeywordSearch(
	ctx context.Context, keywords []string, limit int,
) ([]search.Row, error) {
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	docs, err := s.scanDocs(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		doc   guideline.Document
		score int
	}
	var hits []scored
	for _, doc := range docs {
		score := keywordScore(doc, keywords)
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	rows := make([]search.Row, len(hits))
	for i, h := range hits {
		rows[i] = search.Row{Document: h.doc, Combined: float64(h.score)}
	}
	return rows, nil
}

// keywordScore counts keyword occurrences: 2 per content match, 1 per
// keyword-field match.
func keywordScore(doc guideline.Document, keywords []string) int {
	contentLower := strings.ToLower(doc.Content)
	score := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(contentLower, kw) {
			score += 2
		}
		for _, dk := range doc.Keywords {
			if strings.Contains(strings.ToLower(dk), kw) {
				score++
				break
			}
		}
	}
	return score
}

// ListByCategory returns documents of one category in stored order. Tries the
// index first and falls back to a scan when the TAG query is unavailable.
func (s *Store) ListByCategory(
	ctx context.Context, category guideline.Category, limit int,
) ([]search.Row, error) {
	if limit <= 0 {
		limit = 10
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(),
			fmt.Sprintf("@category:{%s}", escapeTag(string(category))),
			"LIMIT", "0", strconv.Itoa(limit),
			"DIALECT", "2",
		).Build()

	reply, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if capErr := classify(err); errorsIsCapability(capErr) {
			return s.listByCategoryScan(ctx, category, limit)
		}
		return nil, fmt.Errorf("list by category: %w", err)
	}

	scored, err := parseDocs(reply, false)
	if err != nil {
		return nil, fmt.Errorf("list by category: %w", err)
	}
	rows := make([]search.Row, len(scored))
	for i, sc := range scored {
		rows[i] = search.Row{Document: sc.doc}
	}
	return rows, nil
}

func (s *Store) listByCategoryScan(
	ctx context.Context, category guideline.Category, limit int,
) ([]search.Row, error) {
	docs, err := s.scanDocs(ctx)
	if err != nil {
		return nil, err
	}
	var rows []search.Row
	for _, doc := range docs {
		if doc.Category != category {
			continue
		}
		rows = append(rows, search.Row{Document: doc})
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

// scoredDoc pairs a parsed document with the raw score from one ranking.
type scoredDoc struct {
	doc   guideline.Document
	score float64
}

// knnSearch runs the vector leg. Scores come back as cosine distance; they
// are converted to similarity here.
func (s *Store) knnSearch(
	ctx context.Context, vector []float32, filter string, k int,
) ([]scoredDoc, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("knn: %w: empty vector", domain.ErrInvalidInput)
	}
	if s.vectorDim > 0 && len(vector) != s.vectorDim {
		return nil, fmt.Errorf("knn: %w: got %d dims, index expects %d",
			domain.ErrVectorDimMismatch, len(vector), s.vectorDim)
	}

	queryStr := fmt.Sprintf("(%s)=>[KNN %d @embedding $BLOB AS vector_score]", filter, k)
	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(), queryStr,
			"PARAMS", "2", "BLOB", vectorToBytes(vector),
			"SORTBY", "vector_score", "ASC",
			"LIMIT", "0", strconv.Itoa(k),
			"DIALECT", "2",
		).Build()

	reply, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(fmt.Errorf("knn search: %w", err))
	}

	scored, err := parseDocs(reply, false)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	for i := range scored {
		scored[i].score = distanceToSimilarity(scored[i].score)
	}
	return scored, nil
}

// textSearch runs the BM25 leg with WITHSCORES. Scores are normalized by the
// best score so ranks land in 0-1.
func (s *Store) textSearch(
	ctx context.Context, query string, filter string, limit int,
) ([]scoredDoc, error) {
	terms := escapeQuery(query)
	if terms == "" {
		return nil, nil
	}
	queryStr := terms
	if filter != "*" {
		queryStr = fmt.Sprintf("%s %s", filter, terms)
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").
		Args(s.indexName(), queryStr,
			"WITHSCORES",
			"LIMIT", "0", strconv.Itoa(limit),
			"DIALECT", "2",
		).Build()

	reply, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, classify(fmt.Errorf("text search: %w", err))
	}

	scored, err := parseDocs(reply, true)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	normalizeScores(scored)
	return scored, nil
}

// scanDocs reads up to scanCap documents via SCAN + HGETALL. This path needs
// nothing beyond core Redis commands.
func (s *Store) scanDocs(ctx context.Context) ([]guideline.Document, error) {
	pattern := s.prefix + "guideline:*"
	var keys []string
	cursor := "0"
	for {
		cmd := s.client.B().Arbitrary("SCAN").
			Args(cursor, "MATCH", pattern, "COUNT", strconv.Itoa(scanCap)).Build()
		reply, err := s.client.Do(ctx, cmd).ToArray()
		if err != nil {
			return nil, fmt.Errorf("scan: %w: %w", domain.ErrStoreUnavailable, err)
		}
		if len(reply) != 2 {
			return nil, fmt.Errorf("scan: unexpected reply shape")
		}
		cursor, err = reply[0].ToString()
		if err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		batch, err := reply[1].AsStrSlice()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		keys = append(keys, batch...)
		if cursor == "0" || len(keys) >= scanCap {
			break
		}
	}
	if len(keys) > scanCap {
		keys = keys[:scanCap]
	}

	docs := make([]guideline.Document, 0, len(keys))
	for _, key := range keys {
		cmd := s.client.B().Hgetall().Key(key).Build()
		fields, err := s.client.Do(ctx, cmd).AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("hgetall %s: %w", key, err)
		}
		doc, err := docFromFields(fields)
		if err != nil {
			continue // skip malformed documents rather than failing the scan
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// parseDocs decodes an FT.SEARCH reply. Layout is 2-stride (key, fields) or,
// with WITHSCORES, 3-stride (key, score, fields); the first element is the
// total match count.
func parseDocs(reply []rueidis.RedisMessage, withScores bool) ([]scoredDoc, error) {
	if len(reply) == 0 {
		return nil, fmt.Errorf("empty search reply")
	}

	stride := 2
	if withScores {
		stride = 3
	}

	var out []scoredDoc
	for i := 1; i+stride-1 < len(reply); i += stride {
		var sc scoredDoc
		var fieldsMsg rueidis.RedisMessage

		if withScores {
			raw, err := reply[i+1].ToString()
			if err != nil {
				return nil, fmt.Errorf("result %d: score: %w", i, err)
			}
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("result %d: score %q: %w", i, raw, err)
			}
			sc.score = score
			fieldsMsg = reply[i+2]
		} else {
			fieldsMsg = reply[i+1]
		}

		fieldArr, err := fieldsMsg.ToArray()
		if err != nil {
			return nil, fmt.Errorf("result %d: fields: %w", i, err)
		}
		fields := make(map[string]string, len(fieldArr)/2)
		for j := 0; j+1 < len(fieldArr); j += 2 {
			name, err := fieldArr[j].ToString()
			if err != nil {
				continue
			}
			val, err := fieldArr[j+1].ToString()
			if err != nil {
				continue
			}
			fields[name] = val
		}

		doc, err := docFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		sc.doc = doc

		if !withScores {
			if raw, ok := fields["vector_score"]; ok {
				if score, err := strconv.ParseFloat(raw, 64); err == nil {
					sc.score = score
				}
			}
		}
		out = append(out, sc)
	}
	return out, nil
}

// docFromFields rebuilds a Document from hash fields.
func docFromFields(fields map[string]string) (guideline.Document, error) {
	var doc guideline.Document

	rawID, ok := fields["id"]
	if !ok {
		return doc, fmt.Errorf("missing id field")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return doc, fmt.Errorf("invalid id %q: %w", rawID, err)
	}

	doc.ID = id
	doc.Content = fields["content"]
	doc.Source = fields["source"]
	doc.Category = guideline.Category(fields["category"])
	doc.Subcategory = fields["subcategory"]

	if raw := fields["keywords"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc.Keywords); err != nil {
			return doc, fmt.Errorf("invalid keywords: %w", err)
		}
	}
	if raw := fields["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc.Metadata); err != nil {
			return doc, fmt.Errorf("invalid metadata: %w", err)
		}
	}
	return doc, nil
}

// distanceToSimilarity maps cosine distance into 0-1 similarity.
func distanceToSimilarity(distance float64) float64 {
	sim := 1.0 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// normalizeScores scales raw BM25 scores by the maximum so the best match
// ranks 1.0.
func normalizeScores(scored []scoredDoc) {
	var max float64
	for _, sc := range scored {
		if sc.score > max {
			max = sc.score
		}
	}
	if max <= 0 {
		return
	}
	for i := range scored {
		scored[i].score /= max
	}
}

// blend merges the vector and text legs per document ID:
// combined = alpha*similarity + (1-alpha)*textRank. A row survives when its
// similarity clears the threshold or it matched the text leg at all.
func blend(knn, text []scoredDoc, alpha, threshold float64) []search.Row {
	byID := make(map[int64]*search.Row)
	var order []int64

	for _, sc := range knn {
		row := &search.Row{Document: sc.doc, Similarity: sc.score}
		byID[sc.doc.ID] = row
		order = append(order, sc.doc.ID)
	}
	for _, sc := range text {
		if row, ok := byID[sc.doc.ID]; ok {
			row.TextRank = sc.score
			continue
		}
		byID[sc.doc.ID] = &search.Row{Document: sc.doc, TextRank: sc.score}
		order = append(order, sc.doc.ID)
	}

	var rows []search.Row
	for _, id := range order {
		row := byID[id]
		row.Combined = alpha*row.Similarity + (1-alpha)*row.TextRank
		if row.Similarity > threshold || row.TextRank > 0 {
			rows = append(rows, *row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Combined > rows[j].Combined })
	return rows
}

// inCategories reports whether a category passes the allow-list. An empty
// list allows everything.
func inCategories(cat guideline.Category, categories []guideline.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}

// tagFilter renders a category allow-list as a TAG clause, or the match-all
// query when the list is empty.
func tagFilter(categories []guideline.Category) string {
	if len(categories) == 0 {
		return "*"
	}
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = escapeTag(string(c))
	}
	return fmt.Sprintf("@category:{%s}", strings.Join(parts, "|"))
}

// escapeTag escapes TAG syntax characters.
func escapeTag(s string) string {
	r := strings.NewReplacer(
		",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
		"[", "\\[", "]", "\\]", "\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;",
		"!", "\\!", "@", "\\@", "#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
		"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+",
		"=", "\\=", "~", "\\~", "|", "\\|", "/", "\\/", " ", "\\ ",
	)
	return r.Replace(s)
}

// escapeQuery turns free text into a space-joined list of escaped terms.
func escapeQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = escapeTag(t)
	}
	return strings.Join(terms, " ")
}
