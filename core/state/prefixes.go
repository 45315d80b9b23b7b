package state

import "fmt"

var poolCounterKey = []byte("rosca/pools/counter")

func poolKey(id uint64) []byte {
	return []byte(fmt.Sprintf("rosca/pool/%d", id))
}

func ledgerKey(poolID, cycleIndex uint64) []byte {
	return []byte(fmt.Sprintf("rosca/ledger/%d/%d", poolID, cycleIndex))
}
