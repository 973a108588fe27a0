package chem

// element holds the periodic-table data the featurizers need.
type element struct {
	Number   int
	Mass     float64
	Valence  int   // outer shell electrons
	Defaults []int // default valences for implicit hydrogens, ascending
}

var elements = map[string]element{
	"*":  {0, 0, 0, nil},
	"H":  {1, 1.008, 1, []int{1}},
	"He": {2, 4.003, 2, nil},
	"Li": {3, 6.941, 1, nil},
	"Be": {4, 9.012, 2, nil},
	"B":  {5, 10.812, 3, []int{3}},
	"C":  {6, 12.011, 4, []int{4}},
	"N":  {7, 14.007, 5, []int{3, 5}},
	"O":  {8, 15.999, 6, []int{2}},
	"F":  {9, 18.998, 7, []int{1}},
	"Ne": {10, 20.180, 8, nil},
	"Na": {11, 22.990, 1, nil},
	"Mg": {12, 24.305, 2, nil},
	"Al": {13, 26.982, 3, nil},
	"Si": {14, 28.086, 4, []int{4}},
	"P":  {15, 30.974, 5, []int{3, 5}},
	"S":  {16, 32.067, 6, []int{2, 4, 6}},
	"Cl": {17, 35.453, 7, []int{1}},
	"Ar": {18, 39.948, 8, nil},
	"K":  {19, 39.098, 1, nil},
	"Ca": {20, 40.078, 2, nil},
	"Ti": {22, 47.867, 4, nil},
	"Cr": {24, 51.996, 6, nil},
	"Mn": {25, 54.938, 7, nil},
	"Fe": {26, 55.845, 8, nil},
	"Co": {27, 58.933, 9, nil},
	"Ni": {28, 58.693, 10, nil},
	"Cu": {29, 63.546, 11, nil},
	"Zn": {30, 65.39, 2, nil},
	"Ga": {31, 69.723, 3, nil},
	"Ge": {32, 72.61, 4, nil},
	"As": {33, 74.922, 5, []int{3, 5}},
	"Se": {34, 78.96, 6, []int{2, 4, 6}},
	"Br": {35, 79.904, 7, []int{1}},
	"Kr": {36, 83.80, 8, nil},
	"Rb": {37, 85.468, 1, nil},
	"Sr": {38, 87.62, 2, nil},
	"Ag": {47, 107.868, 11, nil},
	"Cd": {48, 112.412, 2, nil},
	"Sn": {50, 118.711, 4, nil},
	"Sb": {51, 121.760, 5, nil},
	"Te": {52, 127.6, 6, []int{2, 4, 6}},
	"I":  {53, 126.904, 7, []int{1}},
	"Xe": {54, 131.29, 8, nil},
	"Cs": {55, 132.905, 1, nil},
	"Ba": {56, 137.328, 2, nil},
	"Pt": {78, 195.078, 10, nil},
	"Au": {79, 196.967, 11, nil},
	"Hg": {80, 200.59, 2, nil},
	"Pb": {82, 207.2, 4, nil},
	"Bi": {83, 208.980, 5, nil},
}

// organic subset symbols that may appear outside brackets
var organic = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true, "*": true,
}

// aromatic lowercase symbols accepted in SMILES
var aromaticSymbols = map[string]string{
	"b": "B", "c": "C", "n": "N", "o": "O", "p": "P", "s": "S",
	"se": "Se", "as": "As", "te": "Te",
}
