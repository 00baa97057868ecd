package es

type H map[string]interface{}

type SearchResult struct {
	Took    int          `json:"took"`
	TimeOut bool         `json:"timed_out"`
	Shards  SearchShards `json:"_shards"`
	Hits    SearchHits   `json:"hits"`
}

type SearchShards struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type SearchHits struct {
	Total    SearchHitsTotal `json:"total"`
	MaxScore float64         `json:"max_score"`
	Hits     []SearchHit     `json:"hits"`
}

type SearchHitsTotal struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

type SearchHit struct {
	Index string `json:"_index"`
	Id    string `json:"_id"`

	Score  float64       `json:"_score"`
	Source Source        `json:"_source"`
	Sort   []interface{} `json:"sort"`
}

// Source keeps the raw JSON of a hit so callers decode it into their own type.
type Source string

func (d *Source) UnmarshalJSON(data []byte) (err error) {
	*d = Source(data)
	return
}

func (d Source) MarshalJSON() ([]byte, error) {
	if d == "" {
		return []byte("null"), nil
	}
	return []byte(d), nil
}
