package load

import "fmt"

// defaultMapping returns the built-in index body with the vector field
// sized to the probed embedding dimension.
func defaultMapping(dims int) []byte {
	return []byte(fmt.Sprintf(`{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "paper_id": {"type": "keyword"},
      "title": {"type": "text"},
      "abstract": {"type": "text"},
      "categories": {"type": "keyword"},
      "authors": {"type": "text"},
      "update_date": {"type": "date", "format": "yyyy-MM-dd||strict_date_optional_time"},
      "abstract_vector": {
        "type": "dense_vector",
        "dims": %d,
        "index": true,
        "similarity": "cosine"
      }
    }
  }
}`, dims))
}
