package console

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfeidau/awsui/internal/assets"
	httpmiddleware "github.com/wolfeidau/awsui/internal/http"
	"github.com/wolfeidau/awsui/internal/tables"
)

type tablesPage struct {
	Tables []tables.Table
}

func (c *Console) listTables(w http.ResponseWriter, r *http.Request) error {
	ts, err := c.tables.List(r.Context())
	if err != nil {
		return err
	}
	return c.render(w, "tables", assets.Page{
		Title:   "DynamoDB tables",
		Entry:   "ui/pages/app.ts",
		Context: tablesPage{Tables: ts},
	})
}

func (c *Console) createTable(w http.ResponseWriter, r *http.Request) error {
	name := strings.TrimSpace(r.FormValue("name"))
	hash := tables.KeyAttr{Name: strings.TrimSpace(r.FormValue("hash_name")), Type: r.FormValue("hash_type")}

	var rangeKey *tables.KeyAttr
	if rn := strings.TrimSpace(r.FormValue("range_name")); rn != "" {
		rangeKey = &tables.KeyAttr{Name: rn, Type: r.FormValue("range_type")}
	}

	if _, err := c.tables.Create(r.Context(), name, hash, rangeKey); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "dynamodb.create_table").Str("table", name).Msg("table created")
	return seeOther(w, r, "/dynamodb/"+name, nil)
}

func (c *Console) deleteTable(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("table")
	if err := c.tables.Delete(r.Context(), name); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "dynamodb.delete_table").Str("table", name).Msg("table deleted")
	return seeOther(w, r, "/dynamodb", nil)
}

func (c *Console) scanTable(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("table")
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	page, err := c.tables.Scan(r.Context(), name, q.Get("cursor"), limit)
	if err != nil {
		return err
	}

	return c.render(w, "table", assets.Page{
		Title:   name,
		Entry:   "ui/pages/table.ts",
		Context: page,
	})
}

// getItem returns one item. With format=dynamodb the item is DynamoDB JSON,
// which the editor posts back unchanged.
func (c *Console) getItem(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	key, err := tables.DecodeItem([]byte(q.Get("key")))
	if err != nil {
		return err
	}

	var item any
	if typedFormat(r) {
		item, err = c.tables.GetTyped(r.Context(), r.PathValue("table"), key)
	} else {
		item, err = c.tables.Get(r.Context(), r.PathValue("table"), key)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, item)
	return nil
}

// putItem stores the request body, a JSON document, as an item. With
// create=1 an existing item with the same key is a conflict. With
// format=dynamodb the body is DynamoDB JSON.
func (c *Console) putItem(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("table")
	document, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return err
	}

	create := r.URL.Query().Get("create") == "1"
	var item tables.Item
	switch {
	case typedFormat(r):
		item, err = c.tables.PutTyped(r.Context(), name, document, create)
	case create:
		item, err = c.tables.Insert(r.Context(), name, document)
	default:
		item, err = c.tables.Put(r.Context(), name, document)
	}
	if err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "dynamodb.put_item").Str("table", name).Bool("create", create).Msg("item written")
	writeJSON(w, http.StatusOK, item)
	return nil
}

func typedFormat(r *http.Request) bool {
	return r.URL.Query().Get("format") == "dynamodb"
}

type deleteItemRequest struct {
	Key tables.Item `json:"key"`
}

func (c *Console) deleteItem(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("table")
	var req deleteItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if err := c.tables.DeleteItem(r.Context(), name, req.Key); err != nil {
		return err
	}
	httpmiddleware.Audit(r.Context(), "dynamodb.delete_item").Str("table", name).Msg("item deleted")
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	return nil
}
