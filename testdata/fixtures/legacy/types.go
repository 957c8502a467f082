package legacy

//builder:gen
type Legacy struct {
	Name string
}
