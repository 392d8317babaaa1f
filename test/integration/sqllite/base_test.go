package sqllite

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
)

var dbSeq int32 = 0

func runTestWithSetup(t *testing.T, testFunc func(t *testing.T)) {
	seq := atomic.AddInt32(&dbSeq, 1)
	filename := fmt.Sprintf("docuflow-test-%d.db", seq)
	defer os.Remove(filename)
	os.Setenv("DFLOW_DATABASE_TYPE", "SQLLITE")
	os.Setenv("DFLOW_DATABASE_SQLLITE_FILE_NAME", filename)
	testFunc(t)
}
