package rebate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	require.Equal(t, 19.01, Round2(19.005))
	require.Equal(t, 19.0, Round2(19.004))
	require.Equal(t, -19.01, Round2(-19.005))
	require.Equal(t, 10.5, Round2(100.00*0.105))
	require.Equal(t, 0.0, Round2(0.004))
	require.Equal(t, 0.01, Round2(0.005))
}
