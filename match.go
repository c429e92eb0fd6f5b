package sift

// Match is one accepted nearest-neighbor correspondence between a query
// descriptor in set A and its best candidate in set B.
type Match struct {
	QueryIdx int32
	TrainIdx int32
	Distance float32
}
