package interval

import (
	"errors"
	"math/big"
)

var errSingular = errors.New("interval: singular matrix")

// invertMatrix inverts a square matrix of exact rationals by Gauss-Jordan
// elimination on the augmented matrix [A | I], taking the first nonzero
// entry at or below the diagonal of each column as its pivot. All
// arithmetic is exact;
// there is no rounding or fraction-free reduction needed once the
// arithmetic itself is performed with big.Rat.
func invertMatrix(a []*big.Rat) ([]*big.Rat, error) {
	n := isqrt(len(a))

	// augmented[i] is row i of [A | I], length 2n.
	augmented := make([][]*big.Rat, n)
	for i := 0; i < n; i++ {
		row := make([]*big.Rat, 2*n)
		for j := 0; j < n; j++ {
			row[j] = new(big.Rat).Set(a[i*n+j])
		}
		for j := 0; j < n; j++ {
			if i == j {
				row[n+j] = big.NewRat(1, 1)
			} else {
				row[n+j] = big.NewRat(0, 1)
			}
		}
		augmented[i] = row
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if augmented[r][col].Sign() != 0 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			return nil, errSingular
		}
		augmented[col], augmented[pivot] = augmented[pivot], augmented[col]

		pivotVal := augmented[col][col]
		for j := 0; j < 2*n; j++ {
			augmented[col][j] = new(big.Rat).Quo(augmented[col][j], pivotVal)
		}

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := augmented[r][col]
			if factor.Sign() == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				term := new(big.Rat).Mul(factor, augmented[col][j])
				augmented[r][j] = new(big.Rat).Sub(augmented[r][j], term)
			}
		}
	}

	inv := make([]*big.Rat, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv[i*n+j] = augmented[i][n+j]
		}
	}
	return inv, nil
}

// matMul multiplies an (rows x inner) matrix by an (inner x cols) matrix,
// both row-major.
func matMul(a, b []*big.Rat, rows, inner, cols int) []*big.Rat {
	out := make([]*big.Rat, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := big.NewRat(0, 1)
			for k := 0; k < inner; k++ {
				term := new(big.Rat).Mul(a[i*inner+k], b[k*cols+j])
				sum.Add(sum, term)
			}
			out[i*cols+j] = sum
		}
	}
	return out
}

func isqrt(n int) int {
	for i := 0; i*i <= n; i++ {
		if i*i == n {
			return i
		}
	}
	panic("interval: not a square matrix length")
}
