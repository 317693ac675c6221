package api

import "context"

//Store describes the document database the mapper talks to
type Store interface {
	//Info probes the database; a missing database answers with a not found error
	Info(ctx context.Context) (DatabaseInfo, error)

	Get(ctx context.Context, id string) (map[string]interface{}, error)
	SaveDocument(ctx context.Context, doc map[string]interface{}) (SaveResult, error)
	DeleteDocument(ctx context.Context, doc map[string]interface{}) error

	//QueryView installs the view definitions of q when needed and queries the view
	QueryView(ctx context.Context, q ViewQuery) (ViewResult, error)
}

//DatabaseInfo is the subset of the database metadata the mapper uses
type DatabaseInfo struct {
	Name      string `json:"db_name"`
	DocCount  int    `json:"doc_count"`
	UpdateSeq string `json:"-"`
}

//SaveResult carries the identity assigned by the store
type SaveResult struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

//ViewDefinition is the map/reduce source of one view
type ViewDefinition struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

//ViewQuery is a compiled view query
type ViewQuery struct {
	Design string
	View   string
	Views  map[string]ViewDefinition
	List   string
	Lists  map[string]string
	Params map[string]interface{}
}

//Row is one raw row of a view result
type Row struct {
	ID    string                 `json:"id,omitempty"`
	Key   interface{}            `json:"key"`
	Value interface{}            `json:"value"`
	Doc   map[string]interface{} `json:"doc,omitempty"`
}

//ViewResult holds the raw rows returned by the store
type ViewResult struct {
	Rows      []Row
	TotalRows *int
}
