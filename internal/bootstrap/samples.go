package bootstrap

import "github.com/wolfeidau/awsui/internal/queues"

type sampleObject struct {
	key         string
	contentType string
	body        []byte
}

var sampleObjects = []sampleObject{
	{
		key:         "README.md",
		contentType: "text/markdown",
		body: []byte(`# Demo bucket

Sample objects for trying out the console previews:

- data/ holds JSON and CSV files
- config/ holds YAML
- images/ holds an SVG logo
`),
	},
	{
		key:         "data/customers.json",
		contentType: "application/json",
		body: []byte(`{
  "customers": [
    {"id": "c-100", "name": "Ada Lovelace", "active": true, "orders": 3, "tags": ["vip", "early"]},
    {"id": "c-101", "name": "Grace Hopper", "active": true, "orders": 1, "tags": []},
    {"id": "c-102", "name": "Alan Turing", "active": false, "orders": 0, "referrer": null}
  ],
  "generated": "2024-01-01T00:00:00Z"
}
`),
	},
	{
		key:         "data/orders.csv",
		contentType: "text/csv",
		body: []byte(`order_id,customer,total,status
1001,c-100,42.50,shipped
1002,c-100,13.00,pending
1003,c-101,99.95,shipped
1004,c-100,7.25,cancelled
`),
	},
	{
		key:         "data/inventory.tsv",
		contentType: "",
		body:        []byte("sku\tname\tqty\nA-1\tWidget\t12\nB-2\tGadget\t0\n"),
	},
	{
		key:         "config/app.yaml",
		contentType: "application/yaml",
		body: []byte(`service:
  name: orders
  replicas: 2
  ports:
    - 8080
    - 9090
features:
  search: true
  previews: true
---
service:
  name: billing
  replicas: 1
`),
	},
	{
		key:         "images/logo.svg",
		contentType: "image/svg+xml",
		body: []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="120" height="120" viewBox="0 0 120 120">
  <rect width="120" height="120" rx="16" fill="#232f3e"/>
  <path d="M30 80 Q60 100 90 80" stroke="#ff9900" stroke-width="8" fill="none" stroke-linecap="round"/>
  <text x="60" y="62" font-family="sans-serif" font-size="28" fill="#fff" text-anchor="middle">UI</text>
</svg>
`),
	},
	{
		key:         "logs/app.log",
		contentType: "text/plain",
		body: []byte(`2024-01-01T00:00:00Z INFO starting orders service
2024-01-01T00:00:01Z INFO listening on :8080
2024-01-01T00:01:12Z WARN slow request path=/orders duration=1.2s
`),
	},
	{
		key:         "site/index.html",
		contentType: "text/html",
		body:        []byte("<!doctype html><html><body><h1>Hello from S3</h1></body></html>\n"),
	},
}

var sampleMessages = map[string][]queues.SendInput{
	"events": {
		{Body: `{"type":"order.created","order_id":1001,"customer":"c-100"}`, Attributes: map[string]string{"source": "bootstrap"}},
		{Body: `{"type":"order.shipped","order_id":1001}`},
		{Body: "plain text event"},
	},
	"orders": {
		{Body: `{"order_id":1002,"step":"reserve"}`, GroupID: "c-100"},
		{Body: `{"order_id":1002,"step":"charge"}`, GroupID: "c-100"},
		{Body: `{"order_id":1003,"step":"reserve"}`, GroupID: "c-101"},
	},
}

var sampleItems = []string{
	`{"customer":"c-100","order_id":1001,"total":42.5,"status":"shipped","lines":[{"sku":"A-1","qty":2}]}`,
	`{"customer":"c-100","order_id":1002,"total":13,"status":"pending"}`,
	`{"customer":"c-101","order_id":1003,"total":99.95,"status":"shipped","gift":true}`,
	`{"customer":"c-100","order_id":1004,"total":7.25,"status":"cancelled","note":null}`,
}
