package attenuation

// Mass-attenuation coefficients (cm²/g, with coherent scattering) sampled at
// the same energies for every material. Air and water are the NIST X-ray mass
// attenuation tables (Hubbell & Seltzer). Cortical bone and skeletal muscle use
// ICRU-44 compositions, and K2HPO4, calcium hydroxyapatite and triglyceride
// (triolein) use stoichiometric compositions; all five are mixture-rule sums of
// the NIST elemental tables restricted to H, C, N, O, P, K and Ca with weight
// fractions renormalised to one. Absorption-edge rows are omitted so energies
// are strictly increasing.
var referenceTables = [NumMaterials]Table{
	Air: {Material: Air, Samples: []Sample{
		{1, 3606}, {1.5, 1191}, {2, 527.9}, {3, 162.5}, {4, 77.88}, {5, 40.27},
		{6, 23.41}, {8, 9.921}, {10, 5.120}, {15, 1.614}, {20, 0.7779}, {30, 0.3538},
		{40, 0.2485}, {50, 0.2080}, {60, 0.1875}, {80, 0.1662}, {100, 0.1541},
		{150, 0.1356}, {200, 0.1233}, {300, 0.1067},
	}},
	CorticalBone: {Material: CorticalBone, Samples: []Sample{
		{1, 4081}, {1.5, 1374}, {2, 617.3}, {3, 296.0}, {4, 131.2}, {5, 200.7},
		{6, 121.0}, {8, 54.37}, {10, 29.33}, {15, 9.234}, {20, 4.129}, {30, 1.393},
		{40, 0.6866}, {50, 0.4332}, {60, 0.3206}, {80, 0.2253}, {100, 0.1861},
		{150, 0.1478}, {200, 0.1303}, {300, 0.1110},
	}},
	SkeletalMuscle: {Material: SkeletalMuscle, Samples: []Sample{
		{1, 3731}, {1.5, 1251}, {2, 559.6}, {3, 176.1}, {4, 79.21}, {5, 40.89},
		{6, 23.73}, {8, 10.04}, {10, 5.184}, {15, 1.639}, {20, 0.7983}, {30, 0.3720},
		{40, 0.2659}, {50, 0.2249}, {60, 0.2040}, {80, 0.1820}, {100, 0.1691},
		{150, 0.1492}, {200, 0.1358}, {300, 0.1176},
	}},
	K2HPO4: {Material: K2HPO4, Samples: []Sample{
		{1, 4324}, {1.5, 1461}, {2, 668.3}, {3, 387.5}, {4, 587.8}, {5, 321.9},
		{6, 194.7}, {8, 87.82}, {10, 47.46}, {15, 14.77}, {20, 6.573}, {30, 2.112},
		{40, 0.9831}, {50, 0.5782}, {60, 0.4000}, {80, 0.2530}, {100, 0.1952},
		{150, 0.1444}, {200, 0.1248}, {300, 0.1048},
	}},
	Hydroxyapatite: {Material: Hydroxyapatite, Samples: []Sample{
		{1, 4703}, {1.5, 1597}, {2, 721.8}, {3, 411.1}, {4, 184.1}, {5, 329.7},
		{6, 199.4}, {8, 90.02}, {10, 48.70}, {15, 15.31}, {20, 6.794}, {30, 2.210},
		{40, 1.026}, {50, 0.6028}, {60, 0.4171}, {80, 0.2633}, {100, 0.2029},
		{150, 0.1496}, {200, 0.1286}, {300, 0.1082},
	}},
	Triglyceride: {Material: Triglyceride, Samples: []Sample{
		{1, 2208}, {1.5, 709.6}, {2, 309.4}, {3, 93.45}, {4, 39.36}, {5, 20.03},
		{6, 11.52}, {8, 4.845}, {10, 2.526}, {15, 0.8677}, {20, 0.4793}, {30, 0.2813},
		{40, 0.2295}, {50, 0.2075}, {60, 0.1948}, {80, 0.1793}, {100, 0.1687},
		{150, 0.1503}, {200, 0.1372}, {300, 0.1190},
	}},
	Water: {Material: Water, Samples: []Sample{
		{1, 4078}, {1.5, 1376}, {2, 617.3}, {3, 192.9}, {4, 82.78}, {5, 42.58},
		{6, 24.64}, {8, 10.37}, {10, 5.329}, {15, 1.673}, {20, 0.8096}, {30, 0.3756},
		{40, 0.2683}, {50, 0.2269}, {60, 0.2059}, {80, 0.1837}, {100, 0.1707},
		{150, 0.1505}, {200, 0.1370}, {300, 0.1186},
	}},
}

// ReferenceTables returns a copy of the embedded tables, one per material in
// Materials() order. Callers own the returned slices.
func ReferenceTables() []Table {
	out := make([]Table, NumMaterials)
	for i, t := range referenceTables {
		out[i] = t.Clone()
	}
	return out
}
