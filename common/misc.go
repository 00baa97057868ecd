package common

import (
	"hash/fnv"
	"os"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

var IDWorker = NewIDWorker()

// NewIDWorker builds a sonyflake worker whose machine id comes from MACHINE_ID,
// falling back to a hash of the host name.
func NewIDWorker() *sonyflake.Sonyflake {
	return sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: machineID,
	})
}

func machineID() (uint16, error) {
	if v := os.Getenv("MACHINE_ID"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, err
		}
		return uint16(n), nil
	}
	host, _ := os.Hostname()
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return uint16(h.Sum32()), nil
}

func NextId(idWorker *sonyflake.Sonyflake) types.ID {
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}
