package serial_port

import (
	"os"
	"testing"

	"github.com/NotCoffee418/kamstrup_meter/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}
