package common

// ErrorBody is the reply of a failed request; Success is always false.
type ErrorBody struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type PagedBody struct {
	List  interface{} `json:"list"`
	Total uint64      `json:"total"`
}
