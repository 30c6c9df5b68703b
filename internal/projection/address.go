package projection

import "github.com/ethereum/go-ethereum/common"

func isZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
