package sparql

import "github.com/larkspur/quadstore/qerr"

func capacityErr(msg string) error {
	return qerr.New(qerr.Capacity, msg)
}
